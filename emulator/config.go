package emulator

import (
	"errors"
	"time"
)

const (
	FULL_SPEED = 0 // Speed setting for batched execution.

	FULL_SPEED_BATCH     = 50
	FULL_SPEED_SNAPSHOTS = 100 // Instructions between snapshots.
	SLOW_SPEED_SNAPSHOTS = 10  // Instructions between snapshots.
	SLOW_SPEED_FRAMES    = 5   // Batches between snapshots.

	FRAME_DURATION = 16 * time.Millisecond
)

// Config sets the pacing of Run mode.
type Config struct {
	Speed int // Delay between instructions in ms, or FULL_SPEED.

	BatchSize        int           // Instructions per batch.
	FrameBudget      time.Duration // Longest time a batch may execute.
	FrameInterval    time.Duration // Wait between batches.
	SnapshotInterval int           // Publish a snapshot every this many instructions.
	SnapshotFrames   int           // Publish a snapshot every this many batches.

	Seed uint64 // Seed for RANDOM_NUMBER.
}

// DefaultConfig returns the pacing for a speed setting. Speed 0 runs
// batches of instructions once per frame; any other speed runs one
// instruction every Speed milliseconds.
func DefaultConfig(speed int) (config Config) {
	config = Config{
		Speed:            speed,
		BatchSize:        1,
		FrameBudget:      FRAME_DURATION,
		FrameInterval:    time.Duration(speed) * time.Millisecond,
		SnapshotInterval: SLOW_SPEED_SNAPSHOTS,
		SnapshotFrames:   SLOW_SPEED_FRAMES,
		Seed:             uint64(time.Now().UnixNano()),
	}

	if speed == FULL_SPEED {
		config.BatchSize = FULL_SPEED_BATCH
		config.FrameInterval = FRAME_DURATION
		config.SnapshotInterval = FULL_SPEED_SNAPSHOTS
		config.SnapshotFrames = 1
	}

	return
}

// Validate the configuration.
func (config Config) Validate() (err error) {
	if config.Speed < 0 {
		err = ErrSpeedInvalid
		return
	}

	if config.BatchSize < 1 || config.SnapshotInterval < 1 || config.SnapshotFrames < 1 ||
		config.FrameBudget <= 0 || config.FrameInterval < 0 {
		err = errors.Join(ErrConfigInvalid, errors.New(f("%+v", config)))
		return
	}

	return
}
