package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/machine"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/monitor"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/script"
)

type CLIFlags struct {
	BinPath     string
	SNAPath     string
	Org         int
	PC          int
	SP          int
	Steps       int
	Trace       bool
	UntilHalt   bool
	Until       string
	ConsolePort int
	Timeout     time.Duration
	Script      string
	Interactive bool
	LogLevel    string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.BinPath, "bin", "", "raw binary to load at -org")
	flag.StringVar(&f.SNAPath, "sna", "", "48K .sna snapshot to restore")
	flag.IntVar(&f.Org, "org", 0x0000, "load address for -bin")
	flag.IntVar(&f.PC, "pc", -1, "initial PC (default: load address)")
	flag.IntVar(&f.SP, "sp", 0xFFFF, "initial SP")
	flag.IntVar(&f.Steps, "steps", 5_000_000, "max instructions to run")
	flag.BoolVar(&f.Trace, "trace", false, "log every instruction at debug level")
	flag.BoolVar(&f.UntilHalt, "until-halt", false, "stop at the first HALT even if interrupts could wake it")
	flag.StringVar(&f.Until, "until", "", "stop when console output contains this substring")
	flag.IntVar(&f.ConsolePort, "console-port", 1, "OUT port copied to stdout; -1 disables")
	flag.DurationVar(&f.Timeout, "timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	flag.StringVar(&f.Script, "script", "", "Lua script driving the machine")
	flag.BoolVar(&f.Interactive, "interactive", false, "single-key stepping on the terminal")
	flag.StringVar(&f.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()
	return f
}

func newLogger(level string, trace bool) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if trace && lvl < logrus.DebugLevel {
		lvl = logrus.DebugLevel
	}
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

func main() {
	f := parseFlags()
	log, err := newLogger(f.LogLevel, f.Trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	code := 0
	if err := run(f, log); err != nil {
		log.WithError(err).Error("z80run failed")
		code = 1
		if errors.Is(err, context.DeadlineExceeded) {
			code = 2
		}
	}
	os.Exit(code)
}

func run(f CLIFlags, log *logrus.Logger) error {
	if f.BinPath == "" && f.SNAPath == "" && f.Script == "" {
		return errors.New("one of -bin, -sna or -script is required")
	}
	if f.Org < 0 || f.Org > 0xFFFF || f.PC > 0xFFFF || f.SP < 0 || f.SP > 0xFFFF {
		return errors.New("-org, -pc and -sp must be 16-bit addresses")
	}

	cfg := machine.Config{
		Trace:        f.Trace,
		LoadAddress:  uint16(f.Org),
		StackPointer: uint16(f.SP),
		Logger:       log,
	}
	if f.PC >= 0 {
		cfg.StartPC = uint16(f.PC)
	}
	// Stream console bytes to stdout and keep a copy for -until
	var console bytes.Buffer
	if f.ConsolePort >= 0 {
		if f.ConsolePort > 0xFF {
			return errors.New("-console-port must be 0-255 or -1")
		}
		cfg.ConsolePort = byte(f.ConsolePort)
		cfg.Console = io.MultiWriter(os.Stdout, &console)
	}
	m := machine.New(cfg)

	switch {
	case f.SNAPath != "":
		if err := m.LoadSNAFile(f.SNAPath); err != nil {
			return err
		}
	case f.BinPath != "":
		if err := m.LoadFile(f.BinPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	switch {
	case f.Script != "":
		err = script.RunFile(ctx, m, f.Script)
	case f.Interactive:
		err = interactive(ctx, m, os.Stdin, os.Stdout)
	default:
		var steps int
		var reason string
		steps, reason, err = runLoop(ctx, m, f, &console)
		fmt.Printf("\nDone: steps=%d cycles=%d elapsed=%s stop=%s\n",
			steps, m.CPU().Cycles(), time.Since(start).Truncate(time.Millisecond), reason)
	}
	fmt.Println(monitor.Dump(m.CPU()))
	if err == nil {
		err = m.Memory().Err()
	}
	return err
}

// runLoop ticks the machine until a stop condition and names it.
func runLoop(ctx context.Context, m *machine.Machine, f CLIFlags, console *bytes.Buffer) (int, string, error) {
	c := m.CPU()
	for i := 0; i < f.Steps; i++ {
		switch {
		case c.Stuck():
			return i, "halt", nil
		case f.UntilHalt && c.Halted():
			return i, "halt", nil
		case f.Until != "" && strings.Contains(console.String(), f.Until):
			return i, "until", nil
		}
		if i&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return i, "timeout", err
			}
		}
		if _, err := m.Tick(); err != nil {
			return i, "error", err
		}
	}
	return f.Steps, "steps", nil
}
