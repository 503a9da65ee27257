package store

// Error provides constant error strings to the driver functions.
type Error string

func (e Error) Error() string { return string(e) }

// Constant errors.
// Rule of thumb, all errors start with a small letter and end with no full stop.
const (
	ErrRecordNotFound = Error("record not found")
	ErrInvalidRecord  = Error("record must be a JSON object")
	ErrTableLocked    = Error("table file is locked by another process")
	ErrUnknownTable   = Error("unknown table")
)
