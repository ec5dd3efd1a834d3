package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideIntent(t *testing.T) {
	tests := []struct {
		name     string
		prior    *Transaction
		expected IntentDecision
	}{
		{"no prior transaction", nil, DecisionCreateNew},
		{"awaiting intent", &Transaction{Status: StatusPendingIntent}, DecisionReuse},
		{"intent in flight", &Transaction{Status: StatusPending}, DecisionReuse},
		{"already paid", &Transaction{Status: StatusSucceeded}, DecisionDuplicate},
		{"prior failed", &Transaction{Status: StatusFailed}, DecisionCreateNew},
		{"prior canceled", &Transaction{Status: StatusCanceled}, DecisionCreateNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecideIntent(tt.prior))
		})
	}
}

func TestIntentDecision_String(t *testing.T) {
	assert.Equal(t, "create_new", DecisionCreateNew.String())
	assert.Equal(t, "reuse", DecisionReuse.String())
	assert.Equal(t, "duplicate", DecisionDuplicate.String())
}
