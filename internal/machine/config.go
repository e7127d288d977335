package machine

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/timing"
)

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace        bool   // log every instruction at debug level
	ClockHz      int    // CPU clock used for frame pacing
	FrameRate    int    // frames per second for StepFrame
	LoadAddress  uint16 // where LoadProgram places images by default
	StartPC      uint16 // initial PC after a load; 0 keeps the load address
	StackPointer uint16 // SP after New and Reset
	ConsolePort  byte   // OUT to this port is copied to Console
	Console      io.Writer
	Logger       *logrus.Logger
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.ClockHz <= 0 {
		c.ClockHz = timing.DefaultClockHz
	}
	if c.FrameRate <= 0 {
		c.FrameRate = timing.DefaultFrameRate
	}
	if c.StackPointer == 0 {
		c.StackPointer = 0xFFFF
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}
