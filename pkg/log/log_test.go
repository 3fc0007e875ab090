package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCtx_ReturnsAttachedLogger(t *testing.T) {
	req := require.New(t)

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))

	Ctx(ctx).Info().Str(FieldRoom, "math").Msg("attached")

	req.Contains(buf.String(), `"room":"math"`)
	req.Contains(buf.String(), "attached")
}

func TestCtx_FallsBackToGlobal(t *testing.T) {
	req := require.New(t)

	req.Same(L(), Ctx(context.Background()))
}

func TestLevelMethodsChainOffAccessors(t *testing.T) {
	// Both accessors must support chaining without an intermediate variable.
	L().Debug().Str(FieldRoom, "math").Msg("direct global chain")
	Ctx(context.Background()).Debug().Str(FieldRoom, "math").Msg("direct context chain")
}

func TestParseLevel(t *testing.T) {
	req := require.New(t)

	req.Equal(zerolog.DebugLevel, parseLevel("debug"))
	req.Equal(zerolog.WarnLevel, parseLevel("warning"))
	req.Equal(zerolog.ErrorLevel, parseLevel("ERROR"))
	req.Equal(zerolog.InfoLevel, parseLevel("bogus"))
	req.Equal(zerolog.InfoLevel, parseLevel(""))
}
