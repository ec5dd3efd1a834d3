package payment

// IntentDecision is the outcome of checking a prior transaction before
// creating a new payment intent for the same work.
type IntentDecision int

const (
	// DecisionCreateNew means no usable prior intent exists; create a new
	// transaction row. A failed or canceled prior payment falls here: the
	// old row keeps its fee history and a fresh row gets a fresh snapshot.
	DecisionCreateNew IntentDecision = iota

	// DecisionReuse means a prior intent is still in flight; hand the
	// caller back the existing transaction instead of creating another.
	DecisionReuse

	// DecisionDuplicate means the prior payment already succeeded; a new
	// intent must be rejected.
	DecisionDuplicate
)

// String returns the decision name.
func (d IntentDecision) String() string {
	switch d {
	case DecisionReuse:
		return "reuse"
	case DecisionDuplicate:
		return "duplicate"
	default:
		return "create_new"
	}
}

// DecideIntent classifies a prior transaction for intent creation.
func DecideIntent(prior *Transaction) IntentDecision {
	if prior == nil {
		return DecisionCreateNew
	}
	switch prior.Status {
	case StatusPendingIntent, StatusPending:
		return DecisionReuse
	case StatusSucceeded:
		return DecisionDuplicate
	default: // failed, canceled
		return DecisionCreateNew
	}
}
