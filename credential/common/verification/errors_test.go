package verification

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsOriginalKind(t *testing.T) {
	inner := New(KindExpiredInput, "token expired")
	wrapped := Wrap(inner, KindMalformedToken, "embedded credential rejected")

	assert.True(t, HasKind(wrapped, KindExpiredInput))
	assert.False(t, HasKind(wrapped, KindMalformedToken))
	assert.Equal(t, KindExpiredInput, KindOf(fmt.Errorf("outer: %w", wrapped)))
}

func TestWrapPlainError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindStatusListUnavailable, "fetch status list")

	assert.True(t, HasKind(err, KindStatusListUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Wrap(nil, KindMalformedToken, "noop"))
}

func TestIsMatchesByKind(t *testing.T) {
	err := Newf(KindManifestMismatch, "expected %q", "KYCAMLManifest")

	assert.ErrorIs(t, err, &Error{Kind: KindManifestMismatch})
	assert.NotErrorIs(t, err, &Error{Kind: KindInvalidSignature})
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindStatusListUnavailable, true},
		{KindExpiredInput, false},
		{KindInvalidSignature, false},
		{KindMalformedToken, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &Error{Kind: tt.kind}
			assert.Equal(t, tt.want, e.Retryable())
		})
	}
}
