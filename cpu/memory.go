package cpu

const (
	MEMORY_SIZE = 256 // Number of memory cells.
)

// Memory is the data memory. Reads outside of the memory return 0.
type Memory [MEMORY_SIZE]int32

// Read a memory cell.
func (mem *Memory) Read(addr int32) (value int32) {
	if addr < 0 || addr >= MEMORY_SIZE {
		return
	}
	return mem[addr]
}

// Write a memory cell, returning false if the address is out of range.
func (mem *Memory) Write(addr int32, value int32) (ok bool) {
	if addr < 0 || addr >= MEMORY_SIZE {
		return
	}
	mem[addr] = value
	return true
}

// Reset zeros the memory.
func (mem *Memory) Reset() {
	clear(mem[:])
}
