package cpu

import (
	"errors"

	"github.com/ezrec/tonics/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrPcEnd     = errors.New(f("pc at end of program"))
	ErrHalted    = errors.New(f("halted"))
	ErrNoProgram = errors.New(f("no program"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrOperandMissing     = errors.New(f("operand missing"))
	ErrExpressionDangling = errors.New(f("$( without )"))
)

type ErrLabelDuplicate string

func (el ErrLabelDuplicate) Error() string {
	return f("label %v duplicated", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo+1, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseRegister string

func (err ErrParseRegister) Error() string {
	return f("'%v' is not a register", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
