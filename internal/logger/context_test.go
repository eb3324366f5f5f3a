package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("returns the injected logger instance when present", func(t *testing.T) {
		injected := slog.New(slog.NewJSONHandler(io.Discard, nil))

		ctx := WithContext(context.Background(), injected)

		// Pointer equality: we must get back exactly the instance we put in.
		assert.Same(t, injected, FromContext(ctx))
	})

	t.Run("falls back to the process default when the context is empty", func(t *testing.T) {
		currentDefault := slog.Default()

		got := FromContext(context.Background())

		assert.Same(t, currentDefault, got)
	})
}
