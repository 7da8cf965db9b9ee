package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/refarch/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	noEnv := func(string) string { return "" }

	t.Run("stop with signal", func(t *testing.T) {
		// Startup generates signing key and hashes admin password, leave it time to listen
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		t.Cleanup(cancel)

		err := run(ctx, noEnv, os.Getwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--environment", "dev",
			"--database", pg.DSN,
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("stop with srv error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		t.Cleanup(cancel)

		// Address is taken, server must fail
		busy, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		defer busy.Close() // nolint:errcheck

		err = run(ctx, noEnv, os.Getwd, []string{
			"--address", busy.Addr().String(),
			"--environment", "dev",
			"--database", pg.DSN,
		})

		require.Error(t, err, "on incorrect stop should return error")
	})

	t.Run("no database", func(t *testing.T) {
		err := run(t.Context(), noEnv, os.Getwd, []string{"--address", listenAddr})

		require.Error(t, err)
	})

	t.Run("invalid log level", func(t *testing.T) {
		err := run(t.Context(), noEnv, os.Getwd, []string{
			"--address", listenAddr,
			"--log-level", "loud",
			"--database", pg.DSN,
		})

		require.Error(t, err)
	})
}
