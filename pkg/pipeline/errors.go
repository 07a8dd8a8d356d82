package pipeline

import (
	"errors"

	"github.com/coolbeans/kgindex/pkg/config"
)

var (
	// ErrInputUnreadable is returned when an input file cannot be opened or
	// read. No output is written.
	ErrInputUnreadable = errors.New("kgindex: input unreadable")

	// ErrOutputUnwritable is returned when an output file cannot be written.
	// Outputs of the run that were already staged are discarded.
	ErrOutputUnwritable = errors.New("kgindex: output unwritable")

	ErrInvalidConfig = config.ErrInvalidConfig
)
