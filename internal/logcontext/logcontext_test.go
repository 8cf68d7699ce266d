package logcontext

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx_AttributesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("requestId", "r-1"))
	ctx = AppendCtx(ctx, slog.String("orderId", "PIX-1-abcdef01"))

	logger.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "r-1", record["requestId"])
	assert.Equal(t, "PIX-1-abcdef01", record["orderId"])
}

func TestAppendCtx_DoesNotMutateParent(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	_ = AppendCtx(parent, slog.String("b", "2"))

	assert.Len(t, Attrs(parent), 1)
}
