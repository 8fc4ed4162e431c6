package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrCollectorDisabled = errors.New("metrics collection disabled")
)
