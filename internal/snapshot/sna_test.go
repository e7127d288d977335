package snapshot

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/bus"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/cpu"
)

// buildSNA makes an image with distinct register values and PC 0x8123
// pushed at SP 0xFF00.
func buildSNA() []byte {
	data := make([]byte, FileSize)
	data[0] = 0x3F // I
	words := []uint16{0x1111, 0x2222, 0x3333, 0x4444, 0x5555, 0x6666, 0x7777, 0x8888, 0x9999}
	for i, w := range words {
		data[1+2*i] = byte(w)
		data[2+2*i] = byte(w >> 8)
	}
	data[19] = 0x04
	data[20] = 0x55
	data[21], data[22] = 0xC3, 0xA5 // AF = A5C3
	data[23], data[24] = 0x00, 0xFF // SP = FF00
	data[25] = 1
	data[26] = 2
	stack := HeaderSize + 0xFF00 - RAMStart
	data[stack] = 0x23
	data[stack+1] = 0x81
	data[HeaderSize+0x8123-RAMStart] = 0x76
	return data
}

func TestParse(t *testing.T) {
	s, err := Parse(buildSNA())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.I != 0x3F || s.HL2 != 0x1111 || s.IX != 0x9999 || s.AF != 0xA5C3 {
		t.Fatalf("header fields got I=%02x HL'=%04x IX=%04x AF=%04x", s.I, s.HL2, s.IX, s.AF)
	}
	if !s.IFF2 || s.IM != 1 || s.Border != 2 || s.R != 0x55 {
		t.Fatalf("flags got IFF2=%v IM=%d border=%d R=%02x", s.IFF2, s.IM, s.Border, s.R)
	}
	if s.PC() != 0x8123 {
		t.Fatalf("stacked PC got %04x want 8123", s.PC())
	}
}

func TestParseRejectsSize(t *testing.T) {
	if _, err := Parse(make([]byte, 100)); !errors.Is(err, ErrSize) {
		t.Fatalf("short image error got %v", err)
	}
}

func TestApply(t *testing.T) {
	s, err := Parse(buildSNA())
	if err != nil {
		t.Fatal(err)
	}
	c := cpu.New(bus.New())
	if err := s.Apply(c); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.PC != 0x8123 || c.SP != 0xFF02 {
		t.Fatalf("PC/SP got %04x/%04x want 8123/FF02", c.PC, c.SP)
	}
	if c.A != 0xA5 || c.HL() != 0x5555 || c.BC2() != 0x3333 || c.IY != 0x8888 {
		t.Fatalf("registers not restored: A=%02x HL=%04x BC'=%04x IY=%04x", c.A, c.HL(), c.BC2(), c.IY)
	}
	if !c.IFF1 || !c.IFF2 || c.IM != 1 {
		t.Fatalf("interrupt state IFF1=%v IFF2=%v IM=%d", c.IFF1, c.IFF2, c.IM)
	}
	if _, err := c.Step(); err != nil || !c.Halted() {
		t.Fatalf("restored program did not reach HALT: %v", err)
	}
}

func TestCaptureEncodeRoundTrip(t *testing.T) {
	c := cpu.New(bus.New())
	c.SetHL(0x1234)
	c.SetAF2(0xBEEF)
	c.IX = 0x4321
	c.SP = 0xF000
	c.PC = 0x9000
	c.IFF2 = true
	c.IM = 2
	c.Memory().Write(0x5000, 0xAB)

	s, err := Capture(c, 5)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if c.SP != 0xF000 || c.Memory().Read(0xEFFE) != 0 {
		t.Fatalf("capture modified the live machine")
	}
	data := s.Encode()
	if len(data) != FileSize {
		t.Fatalf("encoded size got %d want %d", len(data), FileSize)
	}

	back, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	restored := cpu.New(bus.New())
	if err := back.Apply(restored); err != nil {
		t.Fatal(err)
	}
	if restored.PC != 0x9000 || restored.SP != 0xF000 {
		t.Fatalf("PC/SP got %04x/%04x", restored.PC, restored.SP)
	}
	if restored.HL() != 0x1234 || restored.AF2() != 0xBEEF || restored.IX != 0x4321 || restored.IM != 2 {
		t.Fatalf("registers lost in round trip")
	}
	if restored.Memory().Read(0x5000) != 0xAB {
		t.Fatalf("RAM lost in round trip")
	}
	if back.Border != 5 {
		t.Fatalf("border got %d", back.Border)
	}
}

func TestCaptureRejectsLowStack(t *testing.T) {
	c := cpu.New(bus.New())
	c.SP = 0x3000
	if _, err := Capture(c, 0); !errors.Is(err, ErrStackInROM) {
		t.Fatalf("low stack error got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	s, err := Parse(buildSNA())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "test.sna")
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(back.Encode(), buildSNA()) {
		t.Fatalf("file round trip changed the image")
	}
}

func TestApplyLeavesHalt(t *testing.T) {
	s, err := Parse(buildSNA())
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	c := cpu.New(b)
	if err := c.LoadProgram(0x8000, []byte{0x76}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Step(); err != nil || !c.Halted() {
		t.Fatalf("setup did not halt: %v", err)
	}
	if err := s.Apply(c); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.Halted() {
		t.Fatalf("CPU still halted after apply")
	}
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.PC != 0x8123 || !c.Halted() {
		t.Fatalf("restored HALT not executed: PC=%04x halted=%v", c.PC, c.Halted())
	}
}
