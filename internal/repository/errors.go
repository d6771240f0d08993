package repository

import "errors"

// Sentinel errors surfaced by transactional transition methods. The state
// check and the write share one transaction, so these are the only way a
// lost race becomes visible to callers.
var (
	// ErrStateConflict reports that the row was found but its current
	// state has no edge to the requested one.
	ErrStateConflict = errors.New("state transition conflict")

	// ErrCapacityFull reports that a workshop has no remaining seats.
	ErrCapacityFull = errors.New("workshop capacity reached")

	// ErrDuplicateEnrollment reports that the student already holds an
	// ACTIVE enrollment in the workshop.
	ErrDuplicateEnrollment = errors.New("active enrollment already exists")

	// ErrFiscalRecorded reports that fiscal fields are already populated.
	ErrFiscalRecorded = errors.New("fiscal data already recorded")
)
