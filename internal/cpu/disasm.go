package cpu

import (
	"fmt"
	"strings"
)

// Reader is the read side of Memory.
type Reader interface {
	Read(addr uint16) byte
}

// Disassemble decodes the instruction at addr without executing it and
// returns its text and length in bytes.
func Disassemble(r Reader, addr uint16) (string, int, error) {
	var d Decoder
	p := addr
	for n := 0; n < 8; n++ {
		b := r.Read(p)
		p++
		ins, done, err := d.Decode(b)
		if err != nil {
			return fmt.Sprintf("DB %02XH", b), int(p - addr), err
		}
		if done {
			length := ins.Length + d.Superseded()
			return render(ins, r, p), length, nil
		}
		if pre := d.Prefix(); pre == PrefixDDCB || pre == PrefixFDCB {
			disp := int8(r.Read(p))
			ins, _, err := d.Decode(r.Read(p + 1))
			if err != nil {
				return "DB", int(p - addr), err
			}
			text := strings.Replace(ins.Mnemonic, "+d", fmtDisp(disp), 1)
			return text, ins.Length + d.Superseded(), nil
		}
	}
	return "DB", int(p - addr), nil
}

// Disassemble decodes the instruction at addr in the CPU's memory.
func (c *CPU) Disassemble(addr uint16) (string, int, error) {
	return Disassemble(c.mem, addr)
}

func fmtDisp(d int8) string {
	if d < 0 {
		return fmt.Sprintf("-%02XH", -int(d))
	}
	return fmt.Sprintf("+%02XH", d)
}

// render fills the operand placeholders of a mnemonic. operand is the
// address of the first byte after the opcode.
func render(ins *Instruction, r Reader, operand uint16) string {
	text := ins.Mnemonic
	switch ins.Operand {
	case OpN:
		text = strings.Replace(text, ",n", fmt.Sprintf(",%02XH", r.Read(operand)), 1)
		text = strings.Replace(text, " n", fmt.Sprintf(" %02XH", r.Read(operand)), 1)
		text = strings.Replace(text, "(n)", fmt.Sprintf("(%02XH)", r.Read(operand)), 1)
	case OpNN:
		nn := pair(r.Read(operand+1), r.Read(operand))
		text = strings.Replace(text, "nn", fmt.Sprintf("%04XH", nn), 1)
	case OpDisp:
		text = strings.Replace(text, "+d", fmtDisp(int8(r.Read(operand))), 1)
	case OpDispN:
		text = strings.Replace(text, "+d", fmtDisp(int8(r.Read(operand))), 1)
		text = strings.Replace(text, ",n", fmt.Sprintf(",%02XH", r.Read(operand+1)), 1)
	case OpRel:
		target := operand + 1 + uint16(int16(int8(r.Read(operand))))
		text = strings.Replace(text, "e", fmt.Sprintf("%04XH", target), 1)
	}
	return text
}
