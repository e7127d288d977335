// Package monitor renders machine state as text lines for debuggers and
// command-line dumps.
package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/cpu"
)

// Memory is the read side of an address space.
type Memory interface {
	Read(addr uint16) byte
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Registers lists the register file, one pair of registers per line.
func Registers(c *cpu.CPU) []string {
	state := ""
	if c.Halted() {
		state = " HALT"
	}
	return []string{
		fmt.Sprintf("AF %04X  AF' %04X", c.AF(), c.AF2()),
		fmt.Sprintf("BC %04X  BC' %04X", c.BC(), c.BC2()),
		fmt.Sprintf("DE %04X  DE' %04X", c.DE(), c.DE2()),
		fmt.Sprintf("HL %04X  HL' %04X", c.HL(), c.HL2()),
		fmt.Sprintf("IX %04X  IY  %04X", c.IX, c.IY),
		fmt.Sprintf("SP %04X  PC  %04X", c.SP, c.PC),
		fmt.Sprintf("I  %02X    R   %02X", c.I, c.R),
		fmt.Sprintf("IM %d  IFF1 %d IFF2 %d", c.IM, bit(c.IFF1), bit(c.IFF2)),
		fmt.Sprintf("F  %s", c.F),
		fmt.Sprintf("T  %d%s", c.Cycles(), state),
	}
}

// Dump is Registers joined into one block.
func Dump(c *cpu.CPU) string {
	return strings.Join(Registers(c), "\n")
}

// Disassembly lists n instructions starting at addr. The line at PC is
// marked with '>'. Undecodable bytes are shown as DB.
func Disassembly(c *cpu.CPU, addr uint16, n int) []string {
	mem := c.Memory()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		text, length, err := c.Disassemble(addr)
		if err != nil || length <= 0 {
			text, length = fmt.Sprintf("DB %02XH", mem.Read(addr)), 1
		}
		raw := make([]string, length)
		for j := range raw {
			raw[j] = fmt.Sprintf("%02X", mem.Read(addr+uint16(j)))
		}
		mark := "  "
		if addr == c.PC {
			mark = "> "
		}
		out = append(out, fmt.Sprintf("%s%04X  %-11s %s", mark, addr, strings.Join(raw, " "), text))
		addr += uint16(length)
	}
	return out
}

// HexDump shows rows of 8 bytes with an ASCII column.
func HexDump(mem Memory, addr uint16, rows int) []string {
	out := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var hex, ascii strings.Builder
		for i := 0; i < 8; i++ {
			b := mem.Read(addr + uint16(i))
			if i > 0 {
				hex.WriteByte(' ')
			}
			fmt.Fprintf(&hex, "%02X", b)
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		out = append(out, fmt.Sprintf("%04X  %s  %s", addr, hex.String(), ascii.String()))
		addr += 8
	}
	return out
}

// ParseAddr accepts 1234H, $1234, 0x1234 and plain decimal.
func ParseAddr(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	base := 0
	switch {
	case strings.HasSuffix(s, "H") || strings.HasSuffix(s, "h"):
		s, base = s[:len(s)-1], 16
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint16(v), nil
}

// Breakpoints is a set of PC values.
type Breakpoints map[uint16]struct{}

// Toggle flips addr and reports whether it is now set.
func (b Breakpoints) Toggle(addr uint16) bool {
	if _, ok := b[addr]; ok {
		delete(b, addr)
		return false
	}
	b[addr] = struct{}{}
	return true
}

func (b Breakpoints) Has(addr uint16) bool {
	_, ok := b[addr]
	return ok
}
