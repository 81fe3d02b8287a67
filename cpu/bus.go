package cpu

import (
	"fmt"
)

// BusType is the kind of bus activity of an instruction.
type BusType string

const (
	BUS_NONE           = BusType("")
	BUS_LOAD           = BusType("LOAD")
	BUS_MOV            = BusType("MOV")
	BUS_LOAD_MEM       = BusType("LOAD_MEM")
	BUS_STORE_MEM      = BusType("STORE_MEM")
	BUS_LOAD_INDIRECT  = BusType("LOAD_INDIRECT")
	BUS_STORE_INDIRECT = BusType("STORE_INDIRECT")
	BUS_LEA            = BusType("LEA")
	BUS_SWAP           = BusType("SWAP")
	BUS_ALU            = BusType("ALU")
	BUS_BIT            = BusType("BIT")
	BUS_CMP            = BusType("CMP")
	BUS_JUMP_TAKEN     = BusType("JUMP_TAKEN")
	BUS_JUMP_NOT_TAKEN = BusType("JUMP_NOT_TAKEN")
	BUS_PUSH           = BusType("PUSH")
	BUS_POP            = BusType("POP")
	BUS_CALL           = BusType("CALL")
	BUS_RET            = BusType("RET")
	BUS_INTERRUPT      = BusType("INTERRUPT")
	BUS_IRET           = BusType("IRET")
	BUS_NOP            = BusType("NOP")
	BUS_HALT           = BusType("HALT")
	BUS_RESET          = BusType("RESET")
	BUS_DEBUG          = BusType("DEBUG")
	BUS_ERROR          = BusType("ERROR")
)

// Bus is the bus activity record of an executed instruction. It is
// for observation only, and has no effect on execution.
type Bus struct {
	Type       BusType
	Address    int32
	HasAddress bool
	Data       int32
}

func (bus Bus) String() string {
	if bus.HasAddress {
		return fmt.Sprintf("%v @%d = %d", bus.Type, bus.Address, bus.Data)
	}
	return fmt.Sprintf("%v = %d", bus.Type, bus.Data)
}
