package store

import "errors"

// Sentinel errors checked with errors.Is at the service/API boundary
// (§A.2), mapped to HTTP statuses the way the teacher's pkg/api/errors.go
// maps service errors.
var (
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrNotCancellable        = errors.New("execution is not in a cancellable state")
	ErrConcurrentModification = errors.New("entity was concurrently modified")
	ErrApprovalNotPending    = errors.New("approval is not pending")
	ErrNotClaimed            = errors.New("execution lock is not held by the expected owner")
)
