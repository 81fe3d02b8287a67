package emulator

import (
	"context"
	"errors"
	goio "io"
	"iter"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezrec/tonics/cpu"
	"github.com/ezrec/tonics/internal"
	"github.com/ezrec/tonics/io"
)

// Output messages of the execution engine.
const (
	MSG_STARTED   = "--- Program started ---\n"
	MSG_STEPPING  = "Step mode started...\n"
	MSG_COMPLETED = "\n--- Program completed ---\n"
	MSG_STOPPED   = "\n--- Program stopped ---\n"
)

// Emulator state. CPU + interrupt surfaces + execution engine.
type Emulator struct {
	Verbose    bool             // If set, enables verbose logging.
	*cpu.Cpu                    // Reference to the CPU simulation.
	Interrupts *io.Interrupts   // Interrupt dispatcher and surfaces.
	Config     Config           // Run mode pacing.
	OnSnapshot func(*Snapshot)  // Called with snapshots published by Run and Step.
	Now        func() time.Time // Clock for pacing and statistics.

	Source   string  // Assembly source, reassembled on each start.
	Warnings []error // Warnings from the last assembly.

	mutex   sync.Mutex
	state   State
	stop    atomic.Bool
	halt    chan struct{} // Closed by Stop.
	running chan struct{} // Closed when Run returns.
	started time.Time
}

// NewEmulator creates a new emulator.
func NewEmulator(config Config) (emu *Emulator) {
	emu = &Emulator{
		Cpu:        cpu.NewCpu(),
		Interrupts: io.NewInterrupts(config.Seed),
		Config:     config,
		Now:        time.Now,
	}

	emu.Cpu.Console = emu.Interrupts.Output
	emu.Cpu.Interrupter = emu.Interrupts

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(emu.Cpu.Defines(), emu.Interrupts.Defines())
}

// Output returns the surfaces' text output.
func (emu *Emulator) Output() *io.Output {
	return emu.Interrupts.Output
}

// Screen returns the framebuffer.
func (emu *Emulator) Screen() *io.Screen {
	return emu.Interrupts.Screen
}

// Audio returns the tone trigger queue.
func (emu *Emulator) Audio() *io.Audio {
	return emu.Interrupts.Audio
}

// setVerbose propagates verbosity. The engine mutex must be held.
func (emu *Emulator) setVerbose() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Interrupts.Verbose = emu.Verbose
}

// Load the assembly source, and assemble it to check for warnings.
func (emu *Emulator) Load(source goio.Reader) (err error) {
	data, err := goio.ReadAll(source)
	if err != nil {
		return
	}

	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	if emu.state.Active() {
		err = ErrRunning
		return
	}

	emu.Source = string(data)
	prog, err := emu.assemble()
	if err != nil {
		return
	}

	emu.Cpu.Program = prog

	return
}

// assemble the current source. The engine mutex must be held.
func (emu *Emulator) assemble() (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}

	prog, err = asm.Parse(strings.NewReader(emu.Source))
	if err != nil {
		return
	}

	emu.Warnings = prog.Warnings

	return
}

// start reassembles the source and resets the machine state. The
// screen and keyboard are kept. The engine mutex must be held.
func (emu *Emulator) start(state State, message string) (err error) {
	if emu.state.Active() {
		err = ErrRunning
		return
	}

	prog, err := emu.assemble()
	if err != nil {
		return
	}

	emu.setVerbose()
	emu.Cpu.Load(prog)
	emu.Interrupts.Output.Set(message)
	emu.stop.Store(false)
	emu.halt = make(chan struct{})
	emu.started = emu.Now()
	emu.setState(state)

	return
}

// setState changes the engine state. The engine mutex must be held.
func (emu *Emulator) setState(state State) {
	if emu.Verbose && state != emu.state {
		log.Printf("emulator: %v -> %v", emu.state, state)
	}
	emu.state = state
}

// finish moves to a terminal state, appending a message to the output.
// The engine mutex must be held.
func (emu *Emulator) finish(state State, message string) {
	emu.Interrupts.Output.WriteString(message)
	emu.setState(state)
}

// tick executes one instruction. It is the only path by which either
// mode advances the machine. The engine mutex must be held.
func (emu *Emulator) tick() (done bool, err error) {
	lineno := emu.Cpu.Program.LineNo(emu.Cpu.Pc)

	err = emu.Cpu.Tick()
	switch {
	case errors.Is(err, cpu.ErrPcEnd):
		err = nil
		done = true
		emu.finish(STATE_HALTED, MSG_COMPLETED)
	case errors.Is(err, cpu.ErrHalted):
		err = nil
		done = true
		emu.setState(STATE_HALTED)
	case err != nil:
		err = &ErrRuntime{LineNo: lineno, Err: err}
	}

	return
}

// publish a snapshot to OnSnapshot, if set.
func (emu *Emulator) publish(snap *Snapshot) {
	if snap != nil && emu.OnSnapshot != nil {
		emu.OnSnapshot(snap)
	}
}

// stopped returns true if Stop was called, or the context is done.
func (emu *Emulator) stopped(ctx context.Context) bool {
	return emu.stop.Load() || ctx.Err() != nil
}

// Run the program until it halts, completes, is stopped, or the context
// is cancelled. Instructions execute in batches, paced by the Config.
// Returns the context error if cancelled.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	config := emu.Config
	err = config.Validate()
	if err != nil {
		return
	}

	emu.mutex.Lock()
	if emu.running != nil {
		emu.mutex.Unlock()
		err = ErrRunning
		return
	}
	err = emu.start(STATE_RUNNING, MSG_STARTED)
	if err != nil {
		emu.mutex.Unlock()
		return
	}
	halt := emu.halt
	running := make(chan struct{})
	emu.running = running
	emu.mutex.Unlock()

	defer func() {
		emu.mutex.Lock()
		emu.running = nil
		emu.mutex.Unlock()
		close(running)
	}()

	// The final snapshot is always published.
	defer func() {
		emu.mutex.Lock()
		snap := emu.capture()
		emu.mutex.Unlock()
		emu.publish(snap)
	}()

	for batches := 1; ; batches++ {
		if emu.stopped(ctx) {
			break
		}

		budget := emu.Now().Add(config.FrameBudget)
		for range config.BatchSize {
			if emu.stopped(ctx) {
				break
			}

			var snap *Snapshot
			emu.mutex.Lock()
			done, tick_err := emu.tick()
			if !done && emu.Cpu.Ticks%config.SnapshotInterval == 0 {
				snap = emu.capture()
			}
			emu.mutex.Unlock()

			if tick_err != nil {
				err = tick_err
				return
			}
			if done {
				return
			}

			emu.publish(snap)

			if !emu.Now().Before(budget) {
				break
			}
		}

		if batches%config.SnapshotFrames == 0 {
			emu.mutex.Lock()
			snap := emu.capture()
			emu.mutex.Unlock()
			emu.publish(snap)
		}

		if config.FrameInterval > 0 {
			timer := time.NewTimer(config.FrameInterval)
			select {
			case <-ctx.Done():
			case <-halt:
			case <-timer.C:
			}
			timer.Stop()
		}
	}

	emu.mutex.Lock()
	emu.finish(STATE_STOPPED, MSG_STOPPED)
	emu.mutex.Unlock()

	err = ctx.Err()
	return
}

// StepStart reassembles the source, resets the machine, and enters step mode.
func (emu *Emulator) StepStart() (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	err = emu.start(STATE_STEPPING, MSG_STEPPING)
	return
}

// Step executes a single instruction in step mode. Returns true once the
// program has halted or completed.
func (emu *Emulator) Step() (done bool, err error) {
	emu.mutex.Lock()
	if emu.state != STATE_STEPPING {
		emu.mutex.Unlock()
		err = ErrNotStepping
		return
	}

	done, err = emu.tick()
	snap := emu.capture()
	emu.mutex.Unlock()

	emu.publish(snap)

	return
}

// Stop a running or stepping program. Run notices between instructions,
// or during the wait between batches.
func (emu *Emulator) Stop() {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	if !emu.stop.Swap(true) && emu.halt != nil {
		close(emu.halt)
	}

	if emu.state == STATE_STEPPING {
		emu.finish(STATE_STOPPED, MSG_STOPPED)
	}
}

// Reset the machine state and every surface, and return to idle. The
// source is kept. An active Run is stopped, and Reset waits for it to
// return, so Reset must not be called from OnSnapshot.
func (emu *Emulator) Reset() {
	emu.Stop()

	emu.mutex.Lock()
	running := emu.running
	emu.mutex.Unlock()
	if running != nil {
		<-running
	}

	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Cpu.Reset()
	emu.Interrupts.Reset()
	emu.started = time.Time{}
	emu.setState(STATE_IDLE)
}

// KeyDown injects a key press between instructions. If keyboard
// interrupts are enabled with a handler, an active program is vectored
// to it. Returns io.ErrKeyboardFull if the press could not be queued.
func (emu *Emulator) KeyDown(ev io.KeyEvent) (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	err = emu.Interrupts.Keyboard.Press(ev)

	handler, ok := emu.Interrupts.Keyboard.Vector()
	if ok && emu.state.Active() && !emu.Cpu.Halted {
		emu.Cpu.Vector(handler)
	}

	return
}

// KeyUp injects a key release between instructions.
func (emu *Emulator) KeyUp(ev io.KeyEvent) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Interrupts.Keyboard.Release(ev)
}

// Snapshot returns a copy of the machine state.
func (emu *Emulator) Snapshot() *Snapshot {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.capture()
}

// State returns the engine state.
func (emu *Emulator) State() State {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.state
}

// Ticks returns the total ticks since a start.
func (emu *Emulator) Ticks() int {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Ticks
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() int {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Pc
}

// LineNo returns the source line of the program counter, or -1.
func (emu *Emulator) LineNo() int {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Program.LineNo(emu.Cpu.Pc)
}

// Listing iterates over the executable instructions of the loaded program.
func (emu *Emulator) Listing() iter.Seq2[int, *cpu.Instruction] {
	return emu.Cpu.Program.Listing()
}
