package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	goio "io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ezrec/tonics/cpu"
	"github.com/ezrec/tonics/emulator"
	"github.com/ezrec/tonics/io"
	"github.com/ezrec/tonics/translate"
)

const (
	KEY_INTERRUPT = 0x03 // Ctrl-C, in raw mode.
)

// console is the terminal in interactive mode.
type console struct {
	goio.Reader
	goio.Writer
}

// keys feeds terminal input to the emulator until it is exhausted.
func keys(emu *emulator.Emulator, input goio.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := input.Read(buf)
		for _, b := range buf[:n] {
			if b == KEY_INTERRUPT {
				emu.Stop()
				return
			}
			ev := io.KeyFromByte(b)
			err := emu.KeyDown(ev)
			if err != nil && emu.Verbose {
				log.Printf("keyboard: %v", err)
			}
			emu.KeyUp(ev)
		}
		if err != nil {
			return
		}
	}
}

// step runs the program in step mode, tracing each instruction and the
// registers after it.
func step(emu *emulator.Emulator, trace goio.Writer) (err error) {
	err = emu.StepStart()
	if err != nil {
		return
	}

	for {
		pc := emu.Pc()
		inst := emu.Cpu.Program.Debug(pc)
		for inst != nil && inst.Blank {
			pc++
			inst = emu.Cpu.Program.Debug(pc)
		}

		var done bool
		done, err = emu.Step()
		if errors.Is(err, emulator.ErrNotStepping) {
			// Stopped.
			err = nil
			return
		}
		if done || err != nil {
			return
		}

		if inst == nil {
			continue
		}

		snap := emu.Snapshot()
		var regs []string
		for reg, value := range snap.Register {
			regs = append(regs, fmt.Sprintf("%v=%d", cpu.Register(reg), value))
		}
		fmt.Fprintf(trace, "%4d: %-24v %v %v\n", inst.LineNo+1, inst.Text, strings.Join(regs, " "), snap.Flags)
	}
}

func main() {
	var compile string
	var speed int
	var batch int
	var stepping bool
	var listing bool
	var interactive bool
	var wavFile string
	var screenFile string
	var ascii bool
	var seed uint64
	var timeout time.Duration
	var lang string
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to run")
	flag.IntVar(&speed, "speed", emulator.FULL_SPEED, "Delay between instructions in ms, 0 for full speed")
	flag.IntVar(&batch, "batch", 0, "Instructions per batch, if set")
	flag.BoolVar(&stepping, "step", false, "Step mode, tracing each instruction")
	flag.BoolVar(&listing, "list", false, "List the assembled program, do not execute")
	flag.BoolVar(&interactive, "i", false, "Interactive keyboard on the terminal")
	flag.StringVar(&wavFile, "wav", "", "Record tones to a .wav file")
	flag.StringVar(&screenFile, "screen", "", "Save the screen to a .bmp file")
	flag.BoolVar(&ascii, "ascii", false, "Print the screen as text")
	flag.Uint64Var(&seed, "seed", 0, "Random number seed, if set")
	flag.DurationVar(&timeout, "timeout", 0, "Stop after a duration, if set")
	flag.StringVar(&lang, "lang", "", "Message language, ie 'en-US'")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		translate.SetLanguage(lang)
	}

	if len(compile) == 0 {
		log.Fatalf("%v: -c option required", os.Args[0])
	}

	config := emulator.DefaultConfig(speed)
	if batch > 0 {
		config.BatchSize = batch
	}
	if seed != 0 {
		config.Seed = seed
	}

	emu := emulator.NewEmulator(config)
	emu.Verbose = verbose

	inf, err := os.Open(compile)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}
	err = emu.Load(inf)
	inf.Close()
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	for _, warning := range emu.Warnings {
		log.Printf("%v: %v", compile, warning)
	}

	if listing {
		for pc, inst := range emu.Listing() {
			fmt.Printf("%4d %4d: %v\n", pc, inst.LineNo+1, inst)
		}
		return
	}

	var recorder *io.WavRecorder
	if len(wavFile) != 0 {
		recorder = &io.WavRecorder{}
		emu.Audio().Sink = recorder
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	emu.Output().Mirror = os.Stdout

	restore := func() {}
	if interactive {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			log.Fatalf("%v: -i requires a terminal", os.Args[0])
		}

		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
		restore = func() {
			term.Restore(fd, state)
			emu.Output().Mirror = os.Stdout
		}

		// Raw mode needs explicit carriage returns.
		emu.Output().Mirror = term.NewTerminal(console{os.Stdin, os.Stdout}, "")

		go keys(emu, os.Stdin)
	}

	if stepping {
		go func() {
			<-ctx.Done()
			emu.Stop()
		}()
		err = step(emu, os.Stderr)
	} else {
		err = emu.Run(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = nil
		}
	}

	restore()

	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	if verbose {
		snap := emu.Snapshot()
		log.Printf("%v: %d instructions, %.0f/s", snap.State, snap.Ticks, snap.Rate())
		log.Printf("cpu:\n%v", emu.Cpu)
	}

	if ascii {
		fmt.Print(emu.Screen())
	}

	if len(screenFile) != 0 {
		ouf, err := os.Create(screenFile)
		if err != nil {
			log.Fatalf("%v: %v", screenFile, err)
		}
		err = emu.Screen().WriteBMP(ouf)
		ouf.Close()
		if err != nil {
			log.Fatalf("%v: %v", screenFile, err)
		}
	}

	if recorder != nil {
		ouf, err := os.Create(wavFile)
		if err != nil {
			log.Fatalf("%v: %v", wavFile, err)
		}
		err = recorder.Save(ouf)
		ouf.Close()
		if err != nil {
			log.Fatalf("%v: %v", wavFile, err)
		}
	}
}
