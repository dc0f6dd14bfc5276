package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		ok   bool
	}{
		{StateManifestPublished, StateApplicationComposed, true},
		{StateManifestPublished, StateApplicationDecoded, true},
		{StateApplicationComposed, StateApplicationDecoded, true},
		{StateApplicationDecoded, StateApplicationEvaluated, true},
		{StateApplicationEvaluated, StateFulfillmentIssued, true},
		{StateApplicationDecoded, StateFailed, true},
		{StateManifestPublished, StateFulfillmentIssued, false},
		{StateApplicationDecoded, StateFulfillmentIssued, false},
		{StateFulfillmentIssued, StateFailed, false},
		{StateFailed, StateApplicationDecoded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
	assert.True(t, StateFulfillmentIssued.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateApplicationDecoded.Terminal())
}

func TestExchangeLifecycle(t *testing.T) {
	e := NewExchange("x-1", "KYCAMLManifest")
	assert.Equal(t, StateManifestPublished, e.State())

	require.NoError(t, e.Advance(StateApplicationDecoded))
	require.NoError(t, e.Advance(StateApplicationEvaluated))
	assert.Error(t, e.Advance(StateApplicationDecoded))
	require.NoError(t, e.Advance(StateFulfillmentIssued))
	assert.Error(t, e.Fail(verification.New(verification.KindMalformedToken, "late")))

	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, StateManifestPublished, history[0].From)
	assert.Equal(t, StateFulfillmentIssued, history[2].To)
	assert.NoError(t, e.Err())
}

func TestExchangeFailure(t *testing.T) {
	e := NewExchange("x-2", "KYCAMLManifest")
	require.NoError(t, e.Advance(StateApplicationDecoded))

	cause := verification.New(verification.KindExpiredInput, "credential expired")
	require.NoError(t, e.Fail(cause))
	assert.Equal(t, StateFailed, e.State())
	assert.Equal(t, cause, e.Err())
	assert.Equal(t, verification.KindExpiredInput, e.FailureKind())
	assert.Error(t, e.Advance(StateApplicationEvaluated))
}
