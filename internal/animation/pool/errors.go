package pool

import "errors"

// Sentinel errors for slot attachment.
var (
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrNilResource    = errors.New("nil slot resource")
)
