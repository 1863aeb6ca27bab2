package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosspoll/harmonizer/pkg/logging"
)

func TestContextFunctions(t *testing.T) {
	t.Run("WithOracle adds oracle to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithOracle(ctx, "gemini")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithStage adds stage to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithStage(ctx, "explode")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithKind adds key kind to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithKind(ctx, "demographic")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithPeriod adds period to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithPeriod(ctx, "2019")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithFields adds custom fields to context", func(t *testing.T) {
		ctx := context.Background()
		fields := map[string]interface{}{
			"keys":   42,
			"tables": 3,
		}
		ctx = logging.WithFields(ctx, fields)

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("FromContext returns default for empty context", func(t *testing.T) {
		logger := logging.FromContext(context.Background())
		assert.NotNil(t, logger)
		assert.Equal(t, logging.Default(), logger)
	})

	t.Run("Ctx extracts logger from context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithOracle(ctx, "rules")

		logger := logging.Ctx(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithRunID threads the run ID through", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithRunID(ctx, "run-123")

		assert.Equal(t, "run-123", logging.RunID(ctx))
	})

	t.Run("RunID returns empty without a run", func(t *testing.T) {
		assert.Equal(t, "", logging.RunID(context.Background()))
	})

	t.Run("field values appear in output", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), tl.Logger)
		ctx = logging.WithStage(ctx, "flatten")
		ctx = logging.WithPeriod(ctx, "2020")

		logging.FromContext(ctx).Info().Msg("stage done")

		assert.True(t, tl.Contains(`"stage":"flatten"`))
		assert.True(t, tl.Contains(`"period":"2020"`))
		assert.True(t, tl.Contains("stage done"))
	})
}
