package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, password_hash, first_name, last_name, title, affiliation, thumbnail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const assignRoles = `-- name: Assign roles to user
INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE name = ANY($2)
`

// Create user and assign roles in one transaction
func (r *UserRepo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	roles := models.Authorities(u.Roles)

	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createUser,
			u.ID, u.Username, u.Email, u.HashedPassword, u.FirstName, u.LastName, u.Title, u.Affiliation, u.Thumbnail,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return apperrors.ErrUserAlreadyExists
			}
			return fmt.Errorf("db error: %w", err)
		}

		if len(roles) == 0 {
			return nil
		}

		tag, err := tx.Exec(ctx, assignRoles, u.ID, roles)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if tag.RowsAffected() != int64(len(roles)) {
			return apperrors.ErrRoleNotFound
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	return r.GetUserByID(ctx, u.ID)
}

const selectUserWithRoles = `
SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.title, u.affiliation, u.thumbnail,
       u.created_at, u.updated_at,
       array_remove(array_agg(r.name ORDER BY r.name), NULL) AS roles
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
`

const getUserByID = `-- name: getUserByID` + selectUserWithRoles + `
WHERE u.id = $1
GROUP BY u.id
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: getUserByEmail` + selectUserWithRoles + `
WHERE u.email = $1
GROUP BY u.id
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const countUsers = `-- name: countUsers
SELECT count(*) FROM users
`

func (r *UserRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRow(ctx, countUsers).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	var roles []string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.Title, &u.Affiliation, &u.Thumbnail,
		&u.CreatedAt, &u.UpdatedAt, &roles,
	)
	for _, name := range roles {
		u.Roles = append(u.Roles, models.Role(name))
	}
	return u, err
}
