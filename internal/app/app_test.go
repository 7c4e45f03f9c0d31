package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

func TestOpenRateRepoRejectsUnknownBackend(t *testing.T) {
	a := &App{
		Config: &config.Config{RatesDBType: "cassandra"},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	_, err := a.openRateRepo(context.Background())
	require.ErrorContains(t, err, "cassandra")
}

func TestCloseRunsInReverseAndJoinsErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	a := &App{}
	a.onClose(func(context.Context) error { order = append(order, "db"); return nil })
	a.onClose(func(context.Context) error { order = append(order, "redis"); return boom })
	a.onClose(func(context.Context) error { order = append(order, "amqp"); return nil })

	err := a.Close(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"amqp", "redis", "db"}, order)

	require.NoError(t, a.Close(context.Background()), "second close is a no-op")
}
