package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/bus"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/machine"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/monitor"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/ui"
)

type CLIFlags struct {
	BinPath    string
	SNAPath    string
	StatePath  string
	Org        int
	PC         int
	Scale      int
	Title      string
	Trace      bool
	ShowScreen bool
	ClockHz    int
	StateDir   string
	ProgramDir string

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected memory CRC32 hex (e.g., "1a2b3c4d")
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.BinPath, "bin", "", "raw binary to load at -org")
	flag.StringVar(&f.SNAPath, "sna", "", "48K .sna snapshot to restore")
	flag.StringVar(&f.StatePath, "state", "", "save state to restore at start")
	flag.IntVar(&f.Org, "org", 0x0000, "load address for -bin")
	flag.IntVar(&f.PC, "pc", -1, "initial PC (default: load address)")
	flag.IntVar(&f.Scale, "scale", 2, "window scale")
	flag.StringVar(&f.Title, "title", "z80mon", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.ShowScreen, "screen", false, "show the display file at 4000H")
	flag.IntVar(&f.ClockHz, "clock", 0, "CPU clock in Hz (default 4 MHz)")
	flag.StringVar(&f.StateDir, "statedir", "states", "directory for save state slots")
	flag.StringVar(&f.ProgramDir, "progdir", "programs", "directory browsed by the program menu")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write the display file to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert memory CRC32 (hex)")
	flag.Parse()
	return f
}

func runHeadless(m *machine.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(); err != nil {
			return err
		}
	}
	dur := time.Since(start)

	crc := crc32.ChecksumIEEE(m.Memory().Slice(0, bus.Size))
	fps := float64(frames) / dur.Seconds()

	m.Logger().WithFields(logrus.Fields{
		"frames":    frames,
		"elapsed":   dur.Truncate(time.Millisecond),
		"fps":       fmt.Sprintf("%.2f", fps),
		"mem_crc32": fmt.Sprintf("%08x", crc),
	}).Info("headless run finished")

	if pngPath != "" {
		if err := saveScreenPNG(m, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		m.Logger().Infof("wrote %s", pngPath)
	}

	if expectCRC != "" {
		// allow with/without 0x, upper/lowercase
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveScreenPNG(m *machine.Machine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, monitor.Screen(m.Memory(), false))
}

func main() {
	f := parseFlags()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if f.Trace {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := machine.Config{
		Trace:       f.Trace,
		ClockHz:     f.ClockHz,
		LoadAddress: uint16(f.Org),
		Logger:      log,
	}
	if f.PC >= 0 {
		cfg.StartPC = uint16(f.PC)
	}
	m := machine.New(cfg)

	switch {
	case f.SNAPath != "":
		if err := m.LoadSNAFile(f.SNAPath); err != nil {
			log.WithError(err).Fatal("load snapshot")
		}
	case f.BinPath != "":
		if err := m.LoadFile(f.BinPath); err != nil {
			log.WithError(err).Fatal("load binary")
		}
	}
	if f.StatePath != "" {
		if err := m.LoadStateFromFile(f.StatePath); err != nil {
			log.WithError(err).Fatal("load state")
		}
	}

	if f.Headless {
		if err := runHeadless(m, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.WithError(err).Fatal("headless run")
		}
		return
	}

	uiCfg := ui.Config{
		Title:      f.Title,
		Scale:      f.Scale,
		StateDir:   f.StateDir,
		ProgramDir: f.ProgramDir,
		ShowScreen: f.ShowScreen || f.SNAPath != "",
	}
	app := ui.NewApp(uiCfg, m)
	if err := app.Run(); err != nil {
		log.WithError(err).Fatal("ui")
	}
}
