package service

import "fmt"

// ErrorCorruptedDatabaseResult is returned when a stored journal row cannot be turned back into a transfer.
type ErrorCorruptedDatabaseResult struct {
	TransferID string
	Cause      error
}

func NewErrorCorruptedDatabaseResult(transferID string, cause error) *ErrorCorruptedDatabaseResult {
	return &ErrorCorruptedDatabaseResult{TransferID: transferID, Cause: cause}
}

func (e *ErrorCorruptedDatabaseResult) Error() string {
	return fmt.Sprintf("journal record of transfer %v is corrupted: %v", e.TransferID, e.Cause)
}

func (e *ErrorCorruptedDatabaseResult) Unwrap() error {
	return e.Cause
}
