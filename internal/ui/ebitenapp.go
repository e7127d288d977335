package ui

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/machine"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/monitor"
)

// Logical layout in debug-font cells.
const (
	screenW = 720
	screenH = 400
	charW   = 6
	lineH   = 16

	disasmX = 150
	rightX  = 440
)

var background = color.RGBA{0x10, 0x10, 0x18, 0xFF}

var slotKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
	ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

type App struct {
	cfg Config
	m   *machine.Machine
	bp  monitor.Breakpoints

	running bool
	fast    bool
	memAddr uint16
	lastErr error

	screen  *ebiten.Image
	overlay *ebiten.Image
	ticks   int

	// menu
	showMenu    bool
	menuMode    string // "main", "slot", "prog", "keys"
	menuIdx     int
	currentSlot int
	progList    []string
	progSel     int
	progOff     int
	keysOff     int

	toastMsg   string
	toastUntil time.Time
	curH       int
}

func NewApp(cfg Config, m *machine.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return &App{cfg: cfg, m: m, bp: monitor.Breakpoints{}, memAddr: 0x4000, curH: screenH}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	a.ticks++
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && (!a.showMenu || a.menuMode == "main") {
		a.showMenu = !a.showMenu
		a.menuMode = "main"
		a.menuIdx = 0
		return nil
	}
	if a.showMenu {
		switch a.menuMode {
		case "slot":
			a.updateSlotMenu()
		case "prog":
			a.updateProgMenu()
		case "keys":
			a.updateKeysMenu()
		default:
			a.updateMainMenu()
		}
		return nil
	}

	c := a.m.CPU()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		a.running = !a.running
		a.lastErr = nil
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		a.running = false
		a.step()
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		a.running = false
		if err := a.m.StepFrame(); err != nil {
			a.fail(err)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		c.RequestNMI()
		a.toast("NMI requested")
	case inpututil.IsKeyJustPressed(ebiten.KeyI):
		c.RequestInterrupt()
		a.toast("INT asserted")
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		if a.bp.Toggle(c.PC) {
			a.toast(fmt.Sprintf("Breakpoint at %04X", c.PC))
		} else {
			a.toast(fmt.Sprintf("Breakpoint at %04X cleared", c.PC))
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		trace := !a.m.Config().Trace
		a.m.SetTrace(trace)
		a.toast(fmt.Sprintf("Trace %v", trace))
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		a.m.Reset()
		a.running = false
		a.lastErr = nil
		a.toast("Reset")
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		a.quickSave()
	case inpututil.IsKeyJustPressed(ebiten.KeyF9):
		a.quickLoad()
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		a.memAddr -= 0x40
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown):
		a.memAddr += 0x40
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		a.memAddr = c.HL()
	}
	for i, k := range slotKeys {
		if i >= a.cfg.Slots {
			break
		}
		if inpututil.IsKeyJustPressed(k) {
			a.currentSlot = i
			a.toast(fmt.Sprintf("Slot %d", i+1))
		}
	}

	// Fast-forward (Tab): while held, run several frames per update
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if a.running {
		frames := 1
		if a.fast {
			frames = 5
		}
		for i := 0; i < frames && a.running; i++ {
			a.runFrame()
		}
	}
	return nil
}

func (a *App) step() {
	if _, err := a.m.Tick(); err != nil {
		a.fail(err)
	}
}

// runFrame ticks until the next frame boundary, a breakpoint, a dead HALT
// or the per-update instruction cap.
func (a *App) runFrame() {
	c := a.m.CPU()
	start := a.m.Frames()
	for n := 0; n < a.cfg.StepsPerUpdate && a.m.Frames() == start; n++ {
		if c.Stuck() {
			a.running = false
			a.toast("HALT with interrupts disabled")
			return
		}
		if n > 0 && a.bp.Has(c.PC) {
			a.running = false
			a.toast(fmt.Sprintf("Break at %04X", c.PC))
			return
		}
		if _, err := a.m.Tick(); err != nil {
			a.fail(err)
			return
		}
	}
}

func (a *App) fail(err error) {
	a.running = false
	a.lastErr = err
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func printLines(screen *ebiten.Image, lines []string, x, y int) {
	for i, s := range lines {
		ebitenutil.DebugPrintAt(screen, s, x, y+i*lineH)
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	c := a.m.CPU()

	printLines(screen, monitor.Registers(c), 8, 8)
	printLines(screen, monitor.Disassembly(c, c.PC, 20), disasmX, 8)

	y := 8
	if a.cfg.ShowScreen {
		if a.screen == nil {
			a.screen = ebiten.NewImage(monitor.ScreenWidth, monitor.ScreenHeight)
		}
		a.screen.WritePixels(monitor.Screen(a.m.Memory(), a.ticks/16%2 == 1).Pix)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(rightX, float64(y))
		screen.DrawImage(a.screen, op)
		y += monitor.ScreenHeight + 8
	}
	printLines(screen, monitor.HexDump(a.m.Memory(), a.memAddr, 8), rightX, y)

	status := "PAUSED"
	if a.running {
		status = "RUNNING"
	}
	if a.lastErr != nil {
		status = "STOPPED: " + a.lastErr.Error()
	}
	line := fmt.Sprintf("%s  slot %d  frame %d", status, a.currentSlot+1, a.m.Frames())
	if len(a.bp) > 0 {
		addrs := make([]string, 0, len(a.bp))
		for pc := range a.bp {
			addrs = append(addrs, fmt.Sprintf("%04X", pc))
		}
		sort.Strings(addrs)
		line += "  bp " + strings.Join(addrs, " ")
	}
	ebitenutil.DebugPrintAt(screen, a.truncateText(line, a.maxCharsForText(8)), 8, screenH-2*lineH)
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 8, screenH-lineH)
	}

	if a.showMenu {
		if a.overlay == nil {
			a.overlay = ebiten.NewImage(screenW, screenH)
			a.overlay.Fill(color.RGBA{0, 0, 0, 200})
		}
		screen.DrawImage(a.overlay, nil)
		switch a.menuMode {
		case "slot":
			a.drawSlotMenu(screen)
		case "prog":
			a.drawProgMenu(screen)
		case "keys":
			a.drawKeysMenu(screen)
		default:
			a.drawMainMenu(screen)
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return screenW, screenH }

func (a *App) maxCharsForText(x int) int { return (screenW - x) / charW }

func (a *App) truncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// wrapText splits s into lines of at most n characters on word boundaries.
func (a *App) wrapText(s string, n int) []string {
	var out []string
	var cur string
	for _, w := range strings.Fields(s) {
		switch {
		case cur == "":
			cur = w
		case len(cur)+1+len(w) <= n:
			cur += " " + w
		default:
			out = append(out, cur)
			cur = w
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
