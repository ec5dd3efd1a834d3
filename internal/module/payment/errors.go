package payment

import "errors"

// Module errors.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRefundNotFound      = errors.New("refund not found")
	ErrNotSucceeded        = errors.New("transaction is not succeeded")
	ErrAlreadyPaid         = errors.New("transaction already paid")
	ErrRefundPending       = errors.New("a pending refund already exists for this transaction")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrProviderNotFound    = errors.New("payment provider not found")
)
