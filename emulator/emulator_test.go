package emulator

import (
	"context"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/tonics/cpu"
	"github.com/ezrec/tonics/io"
)

// testConfig runs at full speed, without waiting between batches.
func testConfig() (config Config) {
	config = DefaultConfig(FULL_SPEED)
	config.FrameInterval = 0
	config.Seed = 1
	return
}

func newEmulator(t *testing.T, config Config, program ...string) (emu *Emulator) {
	emu = NewEmulator(config)
	err := emu.Load(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)
	require.Empty(t, emu.Warnings)
	return
}

// stepAll runs a program in step mode until it is done.
func stepAll(t *testing.T, emu *Emulator) {
	require.NoError(t, emu.StepStart())
	for range 100000 {
		done, err := emu.Step()
		require.NoError(t, err)
		if done {
			return
		}
	}
	t.Fatalf("program did not terminate")
}

var programCount = []string{
	"; count down, and draw",
	"        LOAD R1, #10",
	"        LOAD R2, #0",
	"loop:   ADD R2, R2, R1",
	"        STR R2, #5",
	"        DEC R1",
	"        CMPI R1, #0",
	"        JNE loop",
	"        MOV R1, R2",
	"        INT INT_PRINT_NUMBER",
	"        LOAD R0, #1",
	"        LOAD R1, #2",
	"        LOAD R2, #30",
	"        LOAD R3, #2",
	"        INT INT_SCREEN_DRAW_LINE",
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(testConfig())

	assert.False(emu.Verbose)
	assert.Equal(STATE_IDLE, emu.State())
	assert.Equal(0, emu.Ticks())
	assert.Equal(-1, emu.LineNo())

	defines := maps.Collect(emu.Defines())
	assert.Equal("1", defines["FLAG_ZERO"])
	assert.Equal("1", defines["INT_PRINT_CHAR"])
	assert.Equal("128", defines["SCREEN_WIDTH"])

	assert.Same(emu.Interrupts.Output, emu.Output())
	assert.Same(emu.Interrupts.Screen, emu.Screen())
	assert.Same(emu.Interrupts.Audio, emu.Audio())
}

func TestEmulatorRun(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), programCount...)

	err := emu.Run(context.Background())
	assert.NoError(err)
	assert.Equal(STATE_HALTED, emu.State())
	assert.Equal(MSG_STARTED+"55"+MSG_COMPLETED, emu.Output().String())
	assert.Equal(int32(55), emu.Cpu.Memory[5])
	assert.Equal(30, emu.Screen().Lit())
	assert.Equal(2+5*10+7, emu.Ticks())

	// A second run starts afresh, and keeps the screen.
	emu.Screen().SetPixel(100, 60, 1)
	err = emu.Run(context.Background())
	assert.NoError(err)
	assert.Equal(MSG_STARTED+"55"+MSG_COMPLETED, emu.Output().String())
	assert.Equal(31, emu.Screen().Lit())
}

func TestEmulatorHalt(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(),
		"LOAD R1, #'A'",
		"INT INT_PRINT_CHAR",
		"HALT",
		"INT INT_PRINT_CHAR",
	)

	err := emu.Run(context.Background())
	assert.NoError(err)
	assert.Equal(STATE_HALTED, emu.State())
	assert.Equal(MSG_STARTED+"A"+cpu.MSG_HALTED, emu.Output().String())
	assert.Equal(3, emu.Ticks())
	assert.Equal(2, emu.Pc())
}

func TestEmulatorRunStep(t *testing.T) {
	assert := assert.New(t)

	run := newEmulator(t, testConfig(), programCount...)
	require.NoError(t, run.Run(context.Background()))

	step := newEmulator(t, testConfig(), programCount...)
	stepAll(t, step)

	assert.Equal(STATE_HALTED, step.State())
	assert.Equal(run.Ticks(), step.Ticks())
	assert.Equal(run.Pc(), step.Pc())
	assert.Equal(run.Cpu.Register, step.Cpu.Register)
	assert.Equal(run.Cpu.Flags, step.Cpu.Flags)
	assert.Equal(run.Cpu.Memory, step.Cpu.Memory)
	assert.Equal(run.Screen().Pixels, step.Screen().Pixels)
	assert.Equal(MSG_STEPPING+"55"+MSG_COMPLETED, step.Output().String())

	// Done programs no longer step.
	_, err := step.Step()
	assert.ErrorIs(err, ErrNotStepping)
}

func TestEmulatorStop(t *testing.T) {
	assert := assert.New(t)

	config := testConfig()
	config.FrameInterval = time.Millisecond
	emu := newEmulator(t, config,
		"loop: INC R1",
		"JMP loop",
	)

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = emu.Run(context.Background())
	}()

	assert.Eventually(func() bool {
		return emu.Ticks() > 1000
	}, 5*time.Second, time.Millisecond)

	emu.Stop()
	wg.Wait()

	assert.NoError(err)
	assert.Equal(STATE_STOPPED, emu.State())
	assert.True(strings.HasSuffix(emu.Output().String(), MSG_STOPPED))
	assert.Greater(emu.Cpu.Register[cpu.REG_R1], int32(1000))
}

func TestEmulatorCancel(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), "loop: JMP loop")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for emu.Ticks() < 500 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(STATE_STOPPED, emu.State())
	assert.True(strings.HasSuffix(emu.Output().String(), MSG_STOPPED))

	// Already cancelled.
	err = emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(0, emu.Ticks())
}

func TestEmulatorStepStop(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), "loop: JMP loop")
	require.NoError(t, emu.StepStart())

	for range 10 {
		done, err := emu.Step()
		assert.NoError(err)
		assert.False(done)
	}

	emu.Stop()
	assert.Equal(STATE_STOPPED, emu.State())
	assert.Equal(MSG_STEPPING+MSG_STOPPED, emu.Output().String())
	assert.Equal(10, emu.Ticks())

	_, err := emu.Step()
	assert.ErrorIs(err, ErrNotStepping)
}

func TestEmulatorKeyboard(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(),
		"        LOAD R0, handler",
		"        INT INT_KEYBOARD_INT_HANDLER",
		"        INT INT_KEYBOARD_INT_ENABLE",
		"        LOAD R4, #7",
		"loop:   CMPI R5, #1",
		"        JNE loop",
		"        HALT",
		"handler:",
		"        INT INT_KEYBOARD_READ",
		"        MOV R6, R0",
		"        LOAD R5, #1",
		"        LOAD R4, #-1",
		"        IRET",
	)

	// Idle programs are not vectored.
	err := emu.KeyDown(io.KeyFromByte('q'))
	assert.NoError(err)
	assert.Equal(1, emu.Interrupts.Keyboard.Len())
	assert.Equal(0, emu.Pc())
	emu.Interrupts.Keyboard.Clear()

	require.NoError(t, emu.StepStart())
	for range 9 {
		done, err := emu.Step()
		require.NoError(t, err)
		require.False(t, done)
	}

	// Interrupted between CMPI and JNE, with the compare not equal.
	sp := emu.Cpu.Register[cpu.REG_SP]
	err = emu.KeyDown(io.KeyFromByte('x'))
	assert.NoError(err)
	assert.Equal(7, emu.Pc())
	assert.Equal(sp-2, emu.Cpu.Register[cpu.REG_SP])
	assert.True(emu.Cpu.Flags.Interrupt)
	emu.KeyUp(io.KeyFromByte('x'))

	for range 100 {
		done, err := emu.Step()
		require.NoError(t, err)
		if done {
			break
		}
	}

	assert.Equal(STATE_HALTED, emu.State())
	assert.Equal(int32('x'), emu.Cpu.Register[cpu.REG_R6])
	assert.Equal(int32(-1), emu.Cpu.Register[cpu.REG_R4])
	assert.Equal(0, emu.Interrupts.Keyboard.Len())
	assert.Equal(sp, emu.Cpu.Register[cpu.REG_SP])
}

func TestEmulatorKeyboardFull(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), "loop: JMP loop")
	require.NoError(t, emu.StepStart())

	for n := range io.KEYBOARD_CAPACITY {
		err := emu.KeyDown(io.KeyFromByte(byte('a' + n)))
		assert.NoError(err)
	}

	err := emu.KeyDown(io.KeyFromByte('z'))
	assert.ErrorIs(err, io.ErrKeyboardFull)
	assert.Equal(io.KEYBOARD_CAPACITY, emu.Interrupts.Keyboard.Len())
	assert.Equal(int32('z'), emu.Interrupts.Keyboard.LastASCII)
}

func TestEmulatorReset(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), programCount...)
	emu.Interrupts.Keyboard.Press(io.KeyFromByte('k'))
	emu.Audio().Beep()
	require.NoError(t, emu.Run(context.Background()))
	assert.NotZero(emu.Screen().Lit())

	emu.Reset()
	assert.Equal(STATE_IDLE, emu.State())
	assert.Equal(0, emu.Ticks())
	assert.Equal(0, emu.Pc())
	assert.Zero(emu.Screen().Lit())
	assert.Equal(int32(io.COLOR_DEFAULT), emu.Screen().Color)
	assert.Zero(emu.Interrupts.Keyboard.Len())
	assert.Empty(emu.Audio().Queue)
	assert.Empty(emu.Output().String())
	assert.Equal(int32(cpu.SP_INITIAL), emu.Cpu.Register[cpu.REG_SP])
	assert.Zero(emu.Cpu.Memory[5])

	// The source is kept.
	require.NoError(t, emu.Run(context.Background()))
	assert.Equal(int32(55), emu.Cpu.Memory[5])
}

func TestEmulatorRunKeyboard(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(),
		"        LOAD R0, handler",
		"        INT INT_KEYBOARD_INT_HANDLER",
		"        INT INT_KEYBOARD_INT_ENABLE",
		"loop:   CMPI R5, #1",
		"        JNE loop",
		"        HALT",
		"handler:",
		"        INT INT_KEYBOARD_READ",
		"        MOV R6, R0",
		"        LOAD R5, #1",
		"        IRET",
	)

	done := make(chan error)
	go func() {
		done <- emu.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return emu.Ticks() > 100
	}, 5*time.Second, time.Millisecond)

	assert.NoError(emu.KeyDown(io.KeyFromByte('x')))
	emu.KeyUp(io.KeyFromByte('x'))

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		emu.Stop()
		<-done
		t.Fatalf("handler did not run")
	}

	assert.Equal(STATE_HALTED, emu.State())
	assert.Equal(int32('x'), emu.Cpu.Register[cpu.REG_R6])
	assert.Equal(int32(cpu.SP_INITIAL), emu.Cpu.Register[cpu.REG_SP])
	assert.Equal(0, emu.Cpu.Stack.Len())
	assert.Equal(0, emu.Interrupts.Keyboard.Len())
}

func TestEmulatorResetRun(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(),
		"loop: INC R1",
		"      CMPI R1, #100000",
		"      JNE loop",
	)

	done := make(chan error, 1)
	go func() {
		done <- emu.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return emu.Ticks() > 100
	}, 5*time.Second, time.Millisecond)

	emu.Reset()

	// Reset returns only once Run has.
	select {
	case err := <-done:
		assert.NoError(err)
	default:
		t.Fatalf("Run still active after Reset")
	}

	assert.Equal(STATE_IDLE, emu.State())
	assert.Empty(emu.Output().String())
	assert.Equal(0, emu.Ticks())

	// A new Run is the only driver.
	require.NoError(t, emu.Run(context.Background()))
	assert.Equal(STATE_HALTED, emu.State())
	assert.Equal(int32(100000), emu.Cpu.Register[cpu.REG_R1])
	assert.Equal(MSG_STARTED+MSG_COMPLETED, emu.Output().String())
}

func TestEmulatorStopWait(t *testing.T) {
	assert := assert.New(t)

	config := testConfig()
	config.FrameInterval = time.Hour
	emu := newEmulator(t, config, "loop: JMP loop")

	done := make(chan error, 1)
	go func() {
		done <- emu.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return emu.Ticks() > 0
	}, 5*time.Second, time.Millisecond)

	start := time.Now()
	emu.Stop()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not notice Stop during the frame wait")
	}

	assert.Less(time.Since(start), 5*time.Second)
	assert.Equal(STATE_STOPPED, emu.State())
	assert.True(strings.HasSuffix(emu.Output().String(), MSG_STOPPED))
}

func TestEmulatorConcurrent(t *testing.T) {
	assert := assert.New(t)

	config := testConfig()
	config.FrameInterval = time.Millisecond
	emu := newEmulator(t, config,
		"loop: INC R1",
		"      JMP loop",
	)

	for range 3 {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			emu.Run(context.Background())
		}()

		require.Eventually(t, func() bool {
			return emu.Ticks() > 10
		}, 5*time.Second, time.Millisecond)

		wg.Add(3)
		go func() {
			defer wg.Done()
			for range 100 {
				emu.Snapshot()
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				emu.KeyDown(io.KeyFromByte('a'))
				emu.KeyUp(io.KeyFromByte('a'))
			}
		}()
		go func() {
			defer wg.Done()
			emu.Stop()
			emu.Reset()
		}()

		wg.Wait()
		assert.Equal(STATE_IDLE, emu.State())
		assert.Empty(emu.Output().String())
	}

	// A second Run while one is active is refused.
	done := make(chan error, 1)
	go func() {
		done <- emu.Run(context.Background())
	}()
	require.Eventually(t, func() bool {
		return emu.State() == STATE_RUNNING
	}, 5*time.Second, time.Millisecond)
	assert.ErrorIs(emu.Run(context.Background()), ErrRunning)
	emu.Stop()
	assert.NoError(<-done)
	assert.Equal(STATE_STOPPED, emu.State())
}

func TestEmulatorSnapshots(t *testing.T) {
	assert := assert.New(t)

	config := testConfig()
	config.BatchSize = 1
	config.SnapshotInterval = 10
	config.SnapshotFrames = 1000

	program := make([]string, 35)
	for n := range program {
		program[n] = "NOP"
	}
	emu := newEmulator(t, config, program...)

	var snaps []*Snapshot
	emu.OnSnapshot = func(snap *Snapshot) {
		snaps = append(snaps, snap)
	}

	require.NoError(t, emu.Run(context.Background()))
	require.Len(t, snaps, 4)
	assert.Equal(10, snaps[0].Ticks)
	assert.Equal(20, snaps[1].Ticks)
	assert.Equal(30, snaps[2].Ticks)
	assert.Equal(STATE_RUNNING, snaps[2].State)
	assert.Equal(35, snaps[3].Ticks)
	assert.Equal(STATE_HALTED, snaps[3].State)
	assert.Equal(MSG_STARTED+MSG_COMPLETED, snaps[3].Output)

	// Every step publishes a snapshot.
	snaps = nil
	stepAll(t, emu)
	assert.Len(snaps, 36)
	assert.Equal(1, snaps[0].Ticks)
	assert.Equal(STATE_STEPPING, snaps[0].State)
	assert.Equal(1, snaps[0].Pc)
	assert.Equal(1, snaps[0].LineNo)
}

func TestEmulatorSnapshotCopy(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(),
		"LOAD R1, #3",
		"PUSH R1",
		"STR R1, #9",
		"LOAD R0, #4",
		"LOAD R1, #5",
		"INT INT_SCREEN_SET_PIXEL",
	)

	start := time.Unix(1000, 0)
	now := start
	emu.Now = func() time.Time {
		return now
	}

	stepAll(t, emu)
	now = start.Add(2 * time.Second)

	snap := emu.Snapshot()
	assert.Equal(STATE_HALTED, snap.State)
	assert.Equal(6, snap.Ticks)
	assert.Equal(2*time.Second, snap.Elapsed)
	assert.Equal(3.0, snap.Rate())
	assert.Equal([]int32{3}, snap.Stack)
	assert.Equal(int32(3), snap.Memory[9])
	value, ok := snap.Screen.Pixel(4, 5)
	assert.True(ok)
	assert.Equal(int32(1), value)

	// Snapshots do not alias the machine.
	emu.Cpu.Stack.Data[0] = 7
	emu.Cpu.Memory[9] = 7
	emu.Screen().Clear()
	assert.Equal([]int32{3}, snap.Stack)
	assert.Equal(int32(3), snap.Memory[9])
	assert.Equal(1, snap.Screen.Lit())

	assert.Zero((&Snapshot{}).Rate())
}

func TestEmulatorErrors(t *testing.T) {
	assert := assert.New(t)

	emu := newEmulator(t, testConfig(), "loop: JMP loop")

	_, err := emu.Step()
	assert.ErrorIs(err, ErrNotStepping)

	require.NoError(t, emu.StepStart())
	assert.ErrorIs(emu.StepStart(), ErrRunning)
	assert.ErrorIs(emu.Run(context.Background()), ErrRunning)
	assert.ErrorIs(emu.Load(strings.NewReader("NOP")), ErrRunning)
	emu.Stop()

	emu.Config.Speed = -1
	assert.ErrorIs(emu.Run(context.Background()), ErrSpeedInvalid)

	emu.Config = testConfig()
	emu.Config.BatchSize = 0
	assert.ErrorIs(emu.Run(context.Background()), ErrConfigInvalid)

	err = &ErrRuntime{LineNo: 4, Err: cpu.ErrNoProgram}
	assert.ErrorIs(err, cpu.ErrNoProgram)
	assert.Contains(err.Error(), "line 5")
}

func TestEmulatorLoad(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator(testConfig())
	err := emu.Load(strings.NewReader("; nothing\nNOP\nBOGUS R1\nINT INT_BEEP"))
	assert.NoError(err)
	assert.Empty(emu.Warnings)

	var mnemonics []string
	for _, inst := range emu.Listing() {
		mnemonics = append(mnemonics, inst.Mnemonic)
	}
	assert.Equal([]string{"NOP", "BOGUS", "INT"}, mnemonics)

	stepAll(t, emu)
	assert.Equal([]io.Tone{{Frequency: io.BEEP_FREQUENCY, Duration: io.BEEP_DURATION * time.Millisecond}}, emu.Audio().Queue)
	assert.Contains(emu.Output().String(), "BOGUS")
}

func TestConfig(t *testing.T) {
	assert := assert.New(t)

	config := DefaultConfig(FULL_SPEED)
	assert.Equal(FULL_SPEED_BATCH, config.BatchSize)
	assert.Equal(FRAME_DURATION, config.FrameInterval)
	assert.Equal(FULL_SPEED_SNAPSHOTS, config.SnapshotInterval)
	assert.Equal(1, config.SnapshotFrames)
	assert.NoError(config.Validate())

	config = DefaultConfig(100)
	assert.Equal(1, config.BatchSize)
	assert.Equal(100*time.Millisecond, config.FrameInterval)
	assert.Equal(SLOW_SPEED_SNAPSHOTS, config.SnapshotInterval)
	assert.Equal(SLOW_SPEED_FRAMES, config.SnapshotFrames)
	assert.NoError(config.Validate())

	assert.ErrorIs(DefaultConfig(-5).Validate(), ErrSpeedInvalid)

	for _, broken := range []func(*Config){
		func(c *Config) { c.BatchSize = 0 },
		func(c *Config) { c.SnapshotInterval = 0 },
		func(c *Config) { c.SnapshotFrames = -1 },
		func(c *Config) { c.FrameBudget = 0 },
		func(c *Config) { c.FrameInterval = -time.Second },
	} {
		config := DefaultConfig(FULL_SPEED)
		broken(&config)
		assert.ErrorIs(config.Validate(), ErrConfigInvalid)
	}
}

func TestState(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("idle", STATE_IDLE.String())
	assert.Equal("stepping", STATE_STEPPING.String())
	assert.Equal("stopped", STATE_STOPPED.String())
	assert.Equal("unknown", State(99).String())

	assert.True(STATE_RUNNING.Active())
	assert.True(STATE_STEPPING.Active())
	assert.False(STATE_HALTED.Active())
	assert.False(STATE_IDLE.Active())
}
