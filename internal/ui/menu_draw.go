package ui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

var keyRows = []string{
	"Space: Step one instruction",
	"P: Run / pause",
	"F: Run one frame",
	"Tab: Fast-forward (hold)",
	"B: Toggle breakpoint at PC",
	"I: Assert INT",
	"N: Request NMI",
	"T: Toggle trace log",
	"R: Reset CPU",
	"F5: Save state  F9: Load state",
	"1-9: Select slot",
	"PgUp/PgDn: Scroll memory  Home: Memory at HL",
	"Esc: Open/Close menu",
}

func (a *App) drawMainMenu(screen *ebiten.Image) {
	lines := []string{
		"Menu:",
		fmt.Sprintf("  Save state (slot %d)", a.currentSlot+1),
		fmt.Sprintf("  Load state (slot %d)", a.currentSlot+1),
		"  Select slot",
		"  Load program",
		"  Keybindings",
		"  Close",
	}
	for i, s := range lines {
		prefix := "  "
		if i == a.menuIdx+1 {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*lineH)
	}
	hint := "F5: Save  F9: Load  1-9: Slot  Backspace: Back"
	ebitenutil.DebugPrintAt(screen, a.truncateText(hint, a.maxCharsForText(10)), 10, 10+len(lines)*lineH)
}

func (a *App) drawSlotMenu(screen *ebiten.Image) {
	lines := []string{"Select slot:"}
	for i := 0; i < a.cfg.Slots; i++ {
		state := "[empty]"
		if fi, err := os.Stat(a.statePath(i)); err == nil {
			state = fi.ModTime().Format("2006-01-02 15:04:05")
		}
		lines = append(lines, fmt.Sprintf("  %d %s", i+1, state))
	}
	for i, s := range lines {
		prefix := "  "
		if i == a.menuIdx+1 {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*lineH)
	}
}

func (a *App) drawProgMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Load program (Enter to load, Backspace/Esc to return)", 10, 10)
	d := a.truncateText("Dir: "+a.cfg.ProgramDir, a.maxCharsForText(10))
	ebitenutil.DebugPrintAt(screen, d, 10, 24)
	if len(a.progList) == 0 {
		ebitenutil.DebugPrintAt(screen, "No .bin, .com or .sna files found", 10, 40)
		return
	}
	baseY := 40
	maxRows := (a.curH - baseY) / lineH
	if maxRows < 1 {
		maxRows = 1
	}
	end := a.progOff + maxRows
	if end > len(a.progList) {
		end = len(a.progList)
	}
	maxChars := a.maxCharsForText(10) - 2
	for i, p := range a.progList[a.progOff:end] {
		prefix := "  "
		if a.progOff+i == a.progSel {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+a.truncateText(filepath.Base(p), maxChars), 10, baseY+i*lineH)
	}
	if a.progOff > 0 {
		ebitenutil.DebugPrintAt(screen, "^", 2, baseY)
	}
	if end < len(a.progList) {
		ebitenutil.DebugPrintAt(screen, "v", 2, baseY+(maxRows-1)*lineH)
	}
}

func (a *App) drawKeysMenu(screen *ebiten.Image) {
	title := "Keybindings (Up/Down to scroll, Backspace/Esc to return)"
	cursorY := 10
	for _, w := range a.wrapText(title, a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, cursorY)
		cursorY += lineH
	}
	baseY := cursorY + 4
	maxRows := (a.curH - baseY) / lineH
	if maxRows < 1 {
		maxRows = 1
	}
	if a.keysOff > len(keyRows)-1 {
		a.keysOff = len(keyRows) - 1
	}
	end := a.keysOff + maxRows
	if end > len(keyRows) {
		end = len(keyRows)
	}
	for i := a.keysOff; i < end; i++ {
		ebitenutil.DebugPrintAt(screen, a.truncateText(keyRows[i], a.maxCharsForText(10)), 10, baseY+(i-a.keysOff)*lineH)
	}
	if a.keysOff > 0 {
		ebitenutil.DebugPrintAt(screen, "^", 2, baseY)
	}
	if end < len(keyRows) {
		ebitenutil.DebugPrintAt(screen, "v", 2, baseY+(maxRows-1)*lineH)
	}
}
