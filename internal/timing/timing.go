// Package timing converts between CPU T-states and host video frames.
package timing

const (
	DefaultClockHz   = 4_000_000
	DefaultFrameRate = 60
)

// Converter tracks T-states accumulated within the current frame.
type Converter struct {
	clockHz        int
	frameRate      int
	statesPerFrame uint64
	frameStates    uint64
}

// New returns a converter for clockHz at frameRate frames per second.
// Zero or negative values fall back to the defaults.
func New(clockHz, frameRate int) *Converter {
	c := &Converter{}
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	c.frameRate = frameRate
	c.SetClockHz(clockHz)
	return c
}

func (c *Converter) ClockHz() int { return c.clockHz }

func (c *Converter) StatesPerFrame() uint64 { return c.statesPerFrame }

// Advance adds t T-states and reports whether a frame boundary was crossed.
// The overshoot carries into the next frame.
func (c *Converter) Advance(t int) bool {
	c.frameStates += uint64(t)
	if c.frameStates >= c.statesPerFrame {
		c.frameStates -= c.statesPerFrame
		return true
	}
	return false
}

func (c *Converter) FramesToStates(frames int) uint64 {
	return uint64(frames) * c.statesPerFrame
}

// StatesToFrames rounds down.
func (c *Converter) StatesToFrames(states uint64) uint64 {
	return states / c.statesPerFrame
}

// Remaining is the number of T-states left before the next frame boundary.
func (c *Converter) Remaining() uint64 {
	return c.statesPerFrame - c.frameStates
}

// SetClockHz changes the clock rate and restarts the current frame.
func (c *Converter) SetClockHz(hz int) {
	if hz <= 0 {
		hz = DefaultClockHz
	}
	c.clockHz = hz
	c.statesPerFrame = uint64(hz / c.frameRate)
	if c.statesPerFrame == 0 {
		c.statesPerFrame = 1
	}
	c.frameStates = 0
}

// Reset restarts the current frame.
func (c *Converter) Reset() { c.frameStates = 0 }
