// Package snapshot reads and writes 48K .sna images.
//
// A .sna file is a 27-byte register header followed by the 48KB of RAM at
// 0x4000-0xFFFF. PC is not in the header: it sits on the stack, and loading
// the image ends with the equivalent of RETN.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/cpu"
)

const (
	HeaderSize = 27
	RAMStart   = 0x4000
	RAMSize    = 0x10000 - RAMStart
	FileSize   = HeaderSize + RAMSize
)

var (
	ErrSize       = errors.New("snapshot: file is not a 48K .sna image")
	ErrStackInROM = errors.New("snapshot: stack pointer leaves no room for PC in RAM")
)

// SNA is a decoded snapshot. Register pairs are stored as they appear in
// the file, so SP still points at the pushed PC.
type SNA struct {
	I                  byte
	HL2, DE2, BC2, AF2 uint16
	HL, DE, BC, IY, IX uint16
	IFF2               bool // bit 2 of byte 19
	R                  byte
	AF, SP             uint16
	IM                 byte
	Border             byte

	RAM [RAMSize]byte
}

// Parse decodes a .sna image.
func Parse(data []byte) (*SNA, error) {
	if len(data) != FileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSize, len(data))
	}
	le := binary.LittleEndian
	s := &SNA{
		I:      data[0],
		HL2:    le.Uint16(data[1:]),
		DE2:    le.Uint16(data[3:]),
		BC2:    le.Uint16(data[5:]),
		AF2:    le.Uint16(data[7:]),
		HL:     le.Uint16(data[9:]),
		DE:     le.Uint16(data[11:]),
		BC:     le.Uint16(data[13:]),
		IY:     le.Uint16(data[15:]),
		IX:     le.Uint16(data[17:]),
		IFF2:   data[19]&0x04 != 0,
		R:      data[20],
		AF:     le.Uint16(data[21:]),
		SP:     le.Uint16(data[23:]),
		IM:     data[25] & 0x03,
		Border: data[26] & 0x07,
	}
	copy(s.RAM[:], data[HeaderSize:])
	return s, nil
}

// Load reads and parses the file at path.
func Load(path string) (*SNA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *SNA) ramByte(addr uint16) byte {
	if addr < RAMStart {
		return 0
	}
	return s.RAM[addr-RAMStart]
}

// PC returns the program counter stored on the stack.
func (s *SNA) PC() uint16 {
	return uint16(s.ramByte(s.SP+1))<<8 | uint16(s.ramByte(s.SP))
}

// Apply copies RAM into the CPU's memory and restores the register file,
// popping PC off the stack. IFF1 takes the saved IFF2, as RETN would. A
// halted CPU resumes at the restored PC.
func (s *SNA) Apply(c *cpu.CPU) error {
	if err := c.Memory().Load(RAMStart, s.RAM[:]); err != nil {
		return err
	}
	r := &c.Registers
	r.I, r.R = s.I, s.R
	r.SetHL2(s.HL2)
	r.SetDE2(s.DE2)
	r.SetBC2(s.BC2)
	r.SetAF2(s.AF2)
	r.SetHL(s.HL)
	r.SetDE(s.DE)
	r.SetBC(s.BC)
	r.SetAF(s.AF)
	r.IX, r.IY = s.IX, s.IY
	r.SP = s.SP + 2
	c.Resume(s.PC())
	c.IFF1, c.IFF2 = s.IFF2, s.IFF2
	c.SetInterruptMode(s.IM)
	return nil
}

// Capture builds a snapshot of c. PC is pushed onto the captured copy of
// the stack; the CPU and its memory are not touched.
func Capture(c *cpu.CPU, border byte) (*SNA, error) {
	sp := c.SP - 2
	if sp < RAMStart || sp > 0xFFFE {
		return nil, fmt.Errorf("%w (SP=%04X)", ErrStackInROM, c.SP)
	}
	s := &SNA{
		I:      c.I,
		HL2:    c.HL2(),
		DE2:    c.DE2(),
		BC2:    c.BC2(),
		AF2:    c.AF2(),
		HL:     c.HL(),
		DE:     c.DE(),
		BC:     c.BC(),
		IY:     c.IY,
		IX:     c.IX,
		IFF2:   c.IFF2,
		R:      c.R,
		AF:     c.AF(),
		SP:     sp,
		IM:     c.IM,
		Border: border & 0x07,
	}
	mem := c.Memory()
	for i := range s.RAM {
		s.RAM[i] = mem.Read(RAMStart + uint16(i))
	}
	s.RAM[sp-RAMStart] = byte(c.PC)
	s.RAM[sp+1-RAMStart] = byte(c.PC >> 8)
	return s, nil
}

// Encode returns the .sna bytes.
func (s *SNA) Encode() []byte {
	out := make([]byte, FileSize)
	le := binary.LittleEndian
	out[0] = s.I
	for i, reg := range []uint16{s.HL2, s.DE2, s.BC2, s.AF2, s.HL, s.DE, s.BC, s.IY, s.IX} {
		le.PutUint16(out[1+2*i:], reg)
	}
	if s.IFF2 {
		out[19] = 0x04
	}
	out[20] = s.R
	le.PutUint16(out[21:], s.AF)
	le.PutUint16(out[23:], s.SP)
	out[25] = s.IM
	out[26] = s.Border
	copy(out[HeaderSize:], s.RAM[:])
	return out
}

// WriteTo writes the image to w.
func (s *SNA) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	n, err := bw.Write(s.Encode())
	if err != nil {
		return int64(n), err
	}
	return int64(n), bw.Flush()
}

// Save writes the image to path.
func (s *SNA) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot %q: %w", path, err)
	}
	return f.Close()
}
