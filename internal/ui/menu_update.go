package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const mainMenuItems = 6 // save, load, slot, program, keys, close

func (a *App) statePath(slot int) string {
	return filepath.Join(a.cfg.StateDir, fmt.Sprintf("slot%d.state", slot+1))
}

func (a *App) saveSlot(slot int) error {
	if err := os.MkdirAll(a.cfg.StateDir, 0755); err != nil {
		return err
	}
	return a.m.SaveStateToFile(a.statePath(slot))
}

func (a *App) loadSlot(slot int) error {
	a.running = false
	a.lastErr = nil
	return a.m.LoadStateFromFile(a.statePath(slot))
}

func (a *App) quickSave() {
	if err := a.saveSlot(a.currentSlot); err != nil {
		a.toast("Save failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
}

func (a *App) quickLoad() {
	if _, err := os.Stat(a.statePath(a.currentSlot)); err != nil {
		a.toast("Slot is empty")
		return
	}
	if err := a.loadSlot(a.currentSlot); err != nil {
		a.toast("Load failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
}

// findPrograms lists loadable images under ProgramDir.
func (a *App) findPrograms() []string {
	var out []string
	_ = filepath.WalkDir(a.cfg.ProgramDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".bin", ".com", ".sna":
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

// loadProgram picks the loader by extension. CP/M .com files go to 0100H.
func (a *App) loadProgram(path string) error {
	a.running = false
	a.lastErr = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sna":
		return a.m.LoadSNAFile(path)
	case ".com":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return a.m.LoadProgram(0x0100, data)
	}
	return a.m.LoadFile(path)
}

func (a *App) updateMainMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < mainMenuItems-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.quickSave()
		case 1:
			a.quickLoad()
		case 2:
			a.menuMode = "slot"
			a.menuIdx = a.currentSlot
		case 3:
			a.progList = a.findPrograms()
			a.progSel = 0
			a.progOff = 0
			a.menuMode = "prog"
		case 4:
			a.menuMode = "keys"
			a.keysOff = 0
		case 5:
			a.showMenu = false
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

func (a *App) updateSlotMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < a.cfg.Slots-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.currentSlot = a.menuIdx
		a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
		a.menuMode = "main"
		a.menuIdx = 0
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 0
	}
}

func (a *App) updateProgMenu() {
	n := len(a.progList)
	if n == 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
		return
	}
	// keep the selection inside the visible window
	baseY := 40
	maxRows := (a.curH - baseY) / lineH
	if maxRows < 1 {
		maxRows = 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.progSel > 0 {
		a.progSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.progSel < n-1 {
		a.progSel++
	}
	if a.progSel < a.progOff {
		a.progOff = a.progSel
	}
	if a.progSel >= a.progOff+maxRows {
		a.progOff = a.progSel - maxRows + 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		path := a.progList[a.progSel]
		if err := a.loadProgram(path); err != nil {
			a.toast("Load failed: " + err.Error())
		} else {
			a.toast("Loaded " + filepath.Base(path))
			ebiten.SetWindowTitle(a.cfg.Title + " - [" + filepath.Base(path) + "]")
			a.showMenu = false
		}
		a.menuMode = "main"
		a.menuIdx = 0
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
	}
}

func (a *App) updateKeysMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.keysOff > 0 {
		a.keysOff--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		a.keysOff++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 0
	}
}
