package io

import (
	"errors"

	"github.com/ezrec/tonics/translate"
)

var f = translate.From

var (
	// Keyboard errors
	ErrKeyboardFull = errors.New(f("keyboard buffer full"))

	// Recorder errors
	ErrWavEncoder = errors.New(f("wav encoder"))
)
