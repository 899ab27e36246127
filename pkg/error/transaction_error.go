package error

import (
	"fmt"
	"net/http"
)

// TransactionError reports a persistent-store transaction that was rolled back.
// Nothing the operation wrote before the failure is visible afterwards.
type TransactionError struct {
	Op  string
	Err error
}

func NewTransactionError(op string, err error) *TransactionError {
	return &TransactionError{Op: op, Err: err}
}

func (err *TransactionError) Error() string {
	return fmt.Sprintf("%s rolled back: %v", err.Op, err.Err)
}

func (err *TransactionError) Unwrap() error {
	return err.Err
}

func (err *TransactionError) ErrCode() string {
	return "TRANSACTION_FAILED"
}

func (err *TransactionError) StatusCode() int {
	return http.StatusInternalServerError
}
