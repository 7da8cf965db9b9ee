package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/handlers/userctx"
)

// Principal attached to request by authentication middleware
func handleUserMe() http.Handler {
	type response struct {
		UserID      uuid.UUID `json:"userId"`
		Username    string    `json:"username"`
		Email       string    `json:"email"`
		Authorities []string  `json:"authorities"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := userctx.FromContext(r.Context())
		if !ok {
			render.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		authorities := p.Authorities
		if authorities == nil {
			authorities = []string{}
		}
		render.JSON(w, response{UserID: p.UserID, Username: p.Username, Email: p.Email, Authorities: authorities})
	})
}
