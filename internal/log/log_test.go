package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), LevelInfo, OutputJSON, &buf)
	ctx = With(ctx, "manifest", "KYCAMLManifest")

	Debug(ctx, "hidden")
	Error(ctx, "evaluation failed", errors.New("boom"), "kind", "expired_input")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "evaluation failed", rec["msg"])
	assert.Equal(t, "KYCAMLManifest", rec["manifest"])
	assert.Equal(t, "boom", rec["err"])
	assert.Equal(t, "expired_input", rec["kind"])
}

func TestCopyFromContext(t *testing.T) {
	var buf bytes.Buffer
	orig := NewContext(context.Background(), LevelDebug, OutputText, &buf)
	dest := CopyFromContext(orig, context.Background())

	Leveled(dest).Warn("retrying", "attempt", 2)
	assert.Contains(t, buf.String(), "retrying")
	assert.Contains(t, buf.String(), "attempt=2")
}
