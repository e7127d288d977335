package ui

// Config contains window and debugger settings.
type Config struct {
	Title          string // window title
	Scale          int    // integer upscaling factor
	StepsPerUpdate int    // instruction cap per 60 Hz update while running
	StateDir       string // directory holding save state slots
	Slots          int    // number of save state slots
	ProgramDir     string // directory browsed by the program menu
	ShowScreen     bool   // draw the 4000H display file next to the debugger
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "z80mon"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
	if c.StepsPerUpdate <= 0 {
		c.StepsPerUpdate = 200_000
	}
	if c.StateDir == "" {
		c.StateDir = "states"
	}
	if c.Slots <= 0 {
		c.Slots = 4
	}
	if c.ProgramDir == "" {
		c.ProgramDir = "programs"
	}
}
