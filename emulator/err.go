package emulator

import (
	"errors"

	"github.com/ezrec/tonics/translate"
)

var f = translate.From

var (
	ErrRunning       = errors.New(f("program is running"))
	ErrNotStepping   = errors.New(f("not in step mode"))
	ErrSpeedInvalid  = errors.New(f("speed must not be negative"))
	ErrConfigInvalid = errors.New(f("invalid configuration"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %d %v", err.LineNo+1, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
