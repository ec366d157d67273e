package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-server/internal/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), err.Error())
}

func strPtr(s string) *string { return &s }
