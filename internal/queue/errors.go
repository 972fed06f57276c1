package queue

import "errors"

var (
	// ErrJobNotFound reports an unknown prompt id.
	ErrJobNotFound = errors.New("job not found in ledger")
	// ErrDuplicateJob reports a prompt id recorded twice.
	ErrDuplicateJob = errors.New("job already recorded")
	// ErrSchemaMismatch reports a ledger written by an incompatible version.
	ErrSchemaMismatch = errors.New("ledger schema version mismatch")
)
