package cpu

import (
	"fmt"
	"sync"
)

type tables struct {
	main     [256]*Instruction
	cb       [256]*Instruction
	ed       [256]*Instruction
	index    [2][256]*Instruction // DD (IX) and FD (IY)
	indexBit [2][256]*Instruction // DD CB d op and FD CB d op
}

// instructionTables is built on first use and shared read-only afterwards.
var instructionTables = sync.OnceValue(func() *tables {
	t := &tables{}
	buildBase(&t.main, hlMode)
	buildCB(&t.cb)
	buildED(&t.ed)
	for idx := range 2 {
		buildBase(&t.index[idx], indexModes[idx])
		fillIgnoredPrefix(&t.index[idx], &t.main)
		buildIndexBit(&t.indexBit[idx], idx)
	}
	return t
})

// Lookup returns the table entry for op under prefix p, or nil.
func Lookup(p Prefix, op byte) *Instruction {
	t := instructionTables()
	switch p {
	case PrefixNone:
		return t.main[op]
	case PrefixCB:
		return t.cb[op]
	case PrefixED:
		return t.ed[op]
	case PrefixDD:
		return t.index[0][op]
	case PrefixFD:
		return t.index[1][op]
	case PrefixDDCB:
		return t.indexBit[0][op]
	case PrefixFDCB:
		return t.indexBit[1][op]
	}
	return nil
}

var (
	r8Names     = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	rpNames     = [4]string{"BC", "DE", "HL", "SP"}
	rp2Names    = [4]string{"BC", "DE", "HL", "AF"}
	condNames   = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}
	aluNames    = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	rotNames    = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL"}
	accRotNames = [4]string{"RLCA", "RRCA", "RLA", "RRA"}
	imModes     = [8]byte{0, 0, 1, 2, 0, 0, 1, 2}
)

// regMode selects what H, L, (HL) and HL mean while building a table:
// the plain registers, or the halves and displaced address of IX or IY.
type regMode struct {
	idx    int // -1 for HL, 0 for IX, 1 for IY
	pair   string
	hi, lo string
}

var (
	hlMode     = regMode{idx: -1, pair: "HL", hi: "H", lo: "L"}
	indexModes = [2]regMode{
		{idx: 0, pair: "IX", hi: "IXH", lo: "IXL"},
		{idx: 1, pair: "IY", hi: "IYH", lo: "IYL"},
	}
)

func (m regMode) indexed() bool { return m.idx >= 0 }

func (m regMode) name8(i int) string {
	if !m.indexed() {
		return r8Names[i]
	}
	switch i {
	case 4:
		return m.hi
	case 5:
		return m.lo
	case 6:
		return "(" + m.pair + "+d)"
	}
	return r8Names[i]
}

func (m regMode) rpName(p int) string {
	if p == 2 {
		return m.pair
	}
	return rpNames[p]
}

func (m regMode) rp2Name(p int) string {
	if p == 2 {
		return m.pair
	}
	return rp2Names[p]
}

func aluCategory(op int) Category {
	if op >= 4 {
		return Logic
	}
	return Arithmetic
}

// buildBase fills the unprefixed opcode space for m. For the index modes only
// the opcodes that involve H, L, (HL) or HL are generated here.
func buildBase(t *[256]*Instruction, m regMode) {
	ix := m.idx
	prefixLen := 0
	dispLen, memExtra, dispOp := 0, 0, OpNone
	storeExtra := 0 // LD (IX+d),n overlaps the displacement add with the immediate read
	if m.indexed() {
		prefixLen = 1
		dispLen, memExtra, dispOp = 1, 8, OpDisp
		storeExtra = 5
	}
	put := func(op int, touchesHL bool, ins Instruction) {
		if m.indexed() && !touchesHL {
			return
		}
		ins.Length += prefixLen
		t[op] = &ins
	}

	// LD r,r' and HALT
	for d := range 8 {
		for s := range 8 {
			op := 0x40 | d<<3 | s
			switch {
			case d == 6 && s == 6:
				put(op, false, Instruction{Mnemonic: "HALT", Length: 1, Cycles: 4, Category: Control,
					Exec: func(c *CPU) int {
						c.halted = true
						c.PC--
						return 0
					}})
			case s == 6:
				put(op, true, Instruction{Mnemonic: "LD " + r8Names[d] + "," + m.name8(6),
					Length: 1 + dispLen, Cycles: 7 + memExtra, Category: Load, Operand: dispOp,
					Exec: func(c *CPU) int {
						c.setReg8(-1, d, c.read8(c.memAddr(ix)))
						return 0
					}})
			case d == 6:
				put(op, true, Instruction{Mnemonic: "LD " + m.name8(6) + "," + r8Names[s],
					Length: 1 + dispLen, Cycles: 7 + memExtra, Category: Load, Operand: dispOp,
					Exec: func(c *CPU) int {
						c.write8(c.memAddr(ix), c.reg8(-1, s))
						return 0
					}})
			default:
				touches := d == 4 || d == 5 || s == 4 || s == 5
				put(op, touches, Instruction{Mnemonic: "LD " + m.name8(d) + "," + m.name8(s),
					Length: 1, Cycles: 4, Category: Load,
					Exec: func(c *CPU) int {
						c.setReg8(ix, d, c.reg8(ix, s))
						return 0
					}})
			}
		}
	}

	// 8-bit ALU against registers, (HL) and immediates
	for op := range 8 {
		cat := aluCategory(op)
		for s := range 8 {
			code := 0x80 | op<<3 | s
			if s == 6 {
				put(code, true, Instruction{Mnemonic: aluNames[op] + m.name8(6),
					Length: 1 + dispLen, Cycles: 7 + memExtra, Category: cat, Operand: dispOp,
					Exec: func(c *CPU) int {
						c.alu(op, c.read8(c.memAddr(ix)))
						return 0
					}})
				continue
			}
			put(code, s == 4 || s == 5, Instruction{Mnemonic: aluNames[op] + m.name8(s),
				Length: 1, Cycles: 4, Category: cat,
				Exec: func(c *CPU) int {
					c.alu(op, c.reg8(ix, s))
					return 0
				}})
		}
		put(0xC6|op<<3, false, Instruction{Mnemonic: aluNames[op] + "n",
			Length: 2, Cycles: 7, Category: cat, Operand: OpN,
			Exec: func(c *CPU) int {
				c.alu(op, c.imm8())
				return 0
			}})
	}

	// INC r, DEC r, LD r,n
	for r := range 8 {
		if r == 6 {
			ldOp := OpN
			if m.indexed() {
				ldOp = OpDispN
			}
			put(0x34, true, Instruction{Mnemonic: "INC " + m.name8(6),
				Length: 1 + dispLen, Cycles: 11 + memExtra, Category: Arithmetic, Operand: dispOp,
				Exec: func(c *CPU) int {
					a := c.memAddr(ix)
					var v byte
					v, c.F = inc8(c.read8(a), c.F)
					c.write8(a, v)
					return 0
				}})
			put(0x35, true, Instruction{Mnemonic: "DEC " + m.name8(6),
				Length: 1 + dispLen, Cycles: 11 + memExtra, Category: Arithmetic, Operand: dispOp,
				Exec: func(c *CPU) int {
					a := c.memAddr(ix)
					var v byte
					v, c.F = dec8(c.read8(a), c.F)
					c.write8(a, v)
					return 0
				}})
			put(0x36, true, Instruction{Mnemonic: "LD " + m.name8(6) + ",n",
				Length: 2 + dispLen, Cycles: 10 + storeExtra, Category: Load, Operand: ldOp,
				Exec: func(c *CPU) int {
					a := c.memAddr(ix)
					c.write8(a, c.imm8())
					return 0
				}})
			continue
		}
		touches := r == 4 || r == 5
		put(0x04|r<<3, touches, Instruction{Mnemonic: "INC " + m.name8(r),
			Length: 1, Cycles: 4, Category: Arithmetic,
			Exec: func(c *CPU) int {
				v, f := inc8(c.reg8(ix, r), c.F)
				c.setReg8(ix, r, v)
				c.F = f
				return 0
			}})
		put(0x05|r<<3, touches, Instruction{Mnemonic: "DEC " + m.name8(r),
			Length: 1, Cycles: 4, Category: Arithmetic,
			Exec: func(c *CPU) int {
				v, f := dec8(c.reg8(ix, r), c.F)
				c.setReg8(ix, r, v)
				c.F = f
				return 0
			}})
		put(0x06|r<<3, touches, Instruction{Mnemonic: "LD " + m.name8(r) + ",n",
			Length: 2, Cycles: 7, Category: Load, Operand: OpN,
			Exec: func(c *CPU) int {
				c.setReg8(ix, r, c.imm8())
				return 0
			}})
	}

	// 16-bit loads, arithmetic and stack
	for p := range 4 {
		isHL := p == 2
		put(0x01|p<<4, isHL, Instruction{Mnemonic: "LD " + m.rpName(p) + ",nn",
			Length: 3, Cycles: 10, Category: Load, Operand: OpNN,
			Exec: func(c *CPU) int {
				c.setRP(ix, p, c.imm16())
				return 0
			}})
		put(0x03|p<<4, isHL, Instruction{Mnemonic: "INC " + m.rpName(p),
			Length: 1, Cycles: 6, Category: Arithmetic,
			Exec: func(c *CPU) int {
				c.setRP(ix, p, c.rp(ix, p)+1)
				return 0
			}})
		put(0x0B|p<<4, isHL, Instruction{Mnemonic: "DEC " + m.rpName(p),
			Length: 1, Cycles: 6, Category: Arithmetic,
			Exec: func(c *CPU) int {
				c.setRP(ix, p, c.rp(ix, p)-1)
				return 0
			}})
		put(0x09|p<<4, true, Instruction{Mnemonic: "ADD " + m.pair + "," + m.rpName(p),
			Length: 1, Cycles: 11, Category: Arithmetic,
			Exec: func(c *CPU) int {
				v, f := add16(c.hl(ix), c.rp(ix, p), c.F)
				c.setHL16(ix, v)
				c.F = f
				return 0
			}})
		put(0xC1|p<<4, isHL, Instruction{Mnemonic: "POP " + m.rp2Name(p),
			Length: 1, Cycles: 10, Category: Load,
			Exec: func(c *CPU) int {
				c.setRP2(ix, p, c.pop16())
				return 0
			}})
		put(0xC5|p<<4, isHL, Instruction{Mnemonic: "PUSH " + m.rp2Name(p),
			Length: 1, Cycles: 11, Category: Load,
			Exec: func(c *CPU) int {
				c.push16(c.rp2(ix, p))
				return 0
			}})
	}

	// conditional control flow and restarts
	for cc := range 8 {
		cond := condNames[cc]
		put(0xC0|cc<<3, false, Instruction{Mnemonic: "RET " + cond,
			Length: 1, Cycles: 5, Category: Return,
			Exec: func(c *CPU) int {
				if c.cond(cc) {
					c.PC = c.pop16()
					return 6
				}
				return 0
			}})
		put(0xC2|cc<<3, false, Instruction{Mnemonic: "JP " + cond + ",nn",
			Length: 3, Cycles: 10, Category: Jump, Operand: OpNN,
			Exec: func(c *CPU) int {
				nn := c.imm16()
				if c.cond(cc) {
					c.PC = nn
				}
				return 0
			}})
		put(0xC4|cc<<3, false, Instruction{Mnemonic: "CALL " + cond + ",nn",
			Length: 3, Cycles: 10, Category: Call, Operand: OpNN,
			Exec: func(c *CPU) int {
				nn := c.imm16()
				if c.cond(cc) {
					c.push16(c.PC)
					c.PC = nn
					return 7
				}
				return 0
			}})
		vec := uint16(cc * 8)
		put(0xC7|cc<<3, false, Instruction{Mnemonic: fmt.Sprintf("RST %02XH", vec),
			Length: 1, Cycles: 11, Category: Call,
			Exec: func(c *CPU) int {
				c.push16(c.PC)
				c.PC = vec
				return 0
			}})
		if cc < 4 {
			put(0x20|cc<<3, false, Instruction{Mnemonic: "JR " + cond + ",e",
				Length: 2, Cycles: 7, Category: Jump, Operand: OpRel,
				Exec: func(c *CPU) int {
					e := int8(c.imm8())
					if c.cond(cc) {
						c.PC += uint16(int16(e))
						return 5
					}
					return 0
				}})
		}
	}

	for k := range 4 {
		put(0x07|k<<3, false, Instruction{Mnemonic: accRotNames[k], Length: 1, Cycles: 4, Category: Rotate,
			Exec: func(c *CPU) int {
				c.A, c.F = rotateA(k, c.A, c.F)
				return 0
			}})
	}

	put(0x00, false, Instruction{Mnemonic: "NOP", Length: 1, Cycles: 4, Category: Control,
		Exec: func(c *CPU) int { return 0 }})
	put(0x02, false, Instruction{Mnemonic: "LD (BC),A", Length: 1, Cycles: 7, Category: Load,
		Exec: func(c *CPU) int { c.write8(c.BC(), c.A); return 0 }})
	put(0x12, false, Instruction{Mnemonic: "LD (DE),A", Length: 1, Cycles: 7, Category: Load,
		Exec: func(c *CPU) int { c.write8(c.DE(), c.A); return 0 }})
	put(0x0A, false, Instruction{Mnemonic: "LD A,(BC)", Length: 1, Cycles: 7, Category: Load,
		Exec: func(c *CPU) int { c.A = c.read8(c.BC()); return 0 }})
	put(0x1A, false, Instruction{Mnemonic: "LD A,(DE)", Length: 1, Cycles: 7, Category: Load,
		Exec: func(c *CPU) int { c.A = c.read8(c.DE()); return 0 }})
	put(0x08, false, Instruction{Mnemonic: "EX AF,AF'", Length: 1, Cycles: 4, Category: Exchange,
		Exec: func(c *CPU) int { c.ExAF(); return 0 }})
	put(0x10, false, Instruction{Mnemonic: "DJNZ e", Length: 2, Cycles: 8, Category: Jump, Operand: OpRel,
		Exec: func(c *CPU) int {
			e := int8(c.imm8())
			c.B--
			if c.B != 0 {
				c.PC += uint16(int16(e))
				return 5
			}
			return 0
		}})
	put(0x18, false, Instruction{Mnemonic: "JR e", Length: 2, Cycles: 12, Category: Jump, Operand: OpRel,
		Exec: func(c *CPU) int {
			e := int8(c.imm8())
			c.PC += uint16(int16(e))
			return 0
		}})
	put(0x22, true, Instruction{Mnemonic: "LD (nn)," + m.pair, Length: 3, Cycles: 16, Category: Load, Operand: OpNN,
		Exec: func(c *CPU) int { c.write16(c.imm16(), c.hl(ix)); return 0 }})
	put(0x2A, true, Instruction{Mnemonic: "LD " + m.pair + ",(nn)", Length: 3, Cycles: 16, Category: Load, Operand: OpNN,
		Exec: func(c *CPU) int { c.setHL16(ix, c.read16(c.imm16())); return 0 }})
	put(0x27, false, Instruction{Mnemonic: "DAA", Length: 1, Cycles: 4, Category: Arithmetic,
		Exec: func(c *CPU) int { c.A, c.F = daa(c.A, c.F); return 0 }})
	put(0x2F, false, Instruction{Mnemonic: "CPL", Length: 1, Cycles: 4, Category: Logic,
		Exec: func(c *CPU) int {
			c.A = ^c.A
			c.F = c.F&(FlagS|FlagZ|FlagPV|FlagC) | FlagH | FlagN | xyOf(c.A)
			return 0
		}})
	put(0x32, false, Instruction{Mnemonic: "LD (nn),A", Length: 3, Cycles: 13, Category: Load, Operand: OpNN,
		Exec: func(c *CPU) int { c.write8(c.imm16(), c.A); return 0 }})
	put(0x3A, false, Instruction{Mnemonic: "LD A,(nn)", Length: 3, Cycles: 13, Category: Load, Operand: OpNN,
		Exec: func(c *CPU) int { c.A = c.read8(c.imm16()); return 0 }})
	put(0x37, false, Instruction{Mnemonic: "SCF", Length: 1, Cycles: 4, Category: Control,
		Exec: func(c *CPU) int {
			c.F = c.F&(FlagS|FlagZ|FlagPV) | FlagC | xyOf(c.A)
			return 0
		}})
	put(0x3F, false, Instruction{Mnemonic: "CCF", Length: 1, Cycles: 4, Category: Control,
		Exec: func(c *CPU) int {
			c.F = c.F&(FlagS|FlagZ|FlagPV) | boolFlag(c.F.Carry(), FlagH) |
				boolFlag(!c.F.Carry(), FlagC) | xyOf(c.A)
			return 0
		}})
	put(0xC3, false, Instruction{Mnemonic: "JP nn", Length: 3, Cycles: 10, Category: Jump, Operand: OpNN,
		Exec: func(c *CPU) int { c.PC = c.imm16(); return 0 }})
	put(0xC9, false, Instruction{Mnemonic: "RET", Length: 1, Cycles: 10, Category: Return,
		Exec: func(c *CPU) int { c.PC = c.pop16(); return 0 }})
	put(0xCD, false, Instruction{Mnemonic: "CALL nn", Length: 3, Cycles: 17, Category: Call, Operand: OpNN,
		Exec: func(c *CPU) int {
			nn := c.imm16()
			c.push16(c.PC)
			c.PC = nn
			return 0
		}})
	put(0xD3, false, Instruction{Mnemonic: "OUT (n),A", Length: 2, Cycles: 11, Category: IO, Operand: OpN,
		Exec: func(c *CPU) int { c.out(c.imm8(), c.A); return 0 }})
	put(0xDB, false, Instruction{Mnemonic: "IN A,(n)", Length: 2, Cycles: 11, Category: IO, Operand: OpN,
		Exec: func(c *CPU) int { c.A = c.in(c.imm8()); return 0 }})
	put(0xD9, false, Instruction{Mnemonic: "EXX", Length: 1, Cycles: 4, Category: Exchange,
		Exec: func(c *CPU) int { c.Exx(); return 0 }})
	put(0xE3, true, Instruction{Mnemonic: "EX (SP)," + m.pair, Length: 1, Cycles: 19, Category: Exchange,
		Exec: func(c *CPU) int {
			v := c.read16(c.SP)
			c.write16(c.SP, c.hl(ix))
			c.setHL16(ix, v)
			return 0
		}})
	put(0xE9, true, Instruction{Mnemonic: "JP (" + m.pair + ")", Length: 1, Cycles: 4, Category: Jump,
		Exec: func(c *CPU) int { c.PC = c.hl(ix); return 0 }})
	put(0xEB, false, Instruction{Mnemonic: "EX DE,HL", Length: 1, Cycles: 4, Category: Exchange,
		Exec: func(c *CPU) int {
			c.D, c.E, c.H, c.L = c.H, c.L, c.D, c.E
			return 0
		}})
	put(0xF3, false, Instruction{Mnemonic: "DI", Length: 1, Cycles: 4, Category: Control,
		Exec: func(c *CPU) int {
			c.IFF1, c.IFF2 = false, false
			return 0
		}})
	put(0xFB, false, Instruction{Mnemonic: "EI", Length: 1, Cycles: 4, Category: Control,
		Exec: func(c *CPU) int {
			c.IFF1, c.IFF2 = true, true
			c.eiDelay = true
			return 0
		}})
	put(0xF9, true, Instruction{Mnemonic: "LD SP," + m.pair, Length: 1, Cycles: 6, Category: Load,
		Exec: func(c *CPU) int { c.SP = c.hl(ix); return 0 }})
}

// fillIgnoredPrefix gives every opcode that does not involve HL the
// unprefixed behaviour, one byte longer. The prefix bytes themselves stay
// empty; the decoder handles them as transitions.
func fillIgnoredPrefix(t, main *[256]*Instruction) {
	for op := range 256 {
		if t[op] != nil || main[op] == nil {
			continue
		}
		ins := *main[op]
		ins.Length++
		t[op] = &ins
	}
}

func buildCB(t *[256]*Instruction) {
	for x := range 4 {
		for y := range 8 {
			for z := range 8 {
				op := x<<6 | y<<3 | z
				mem := z == 6
				ins := Instruction{Length: 2, Cycles: 4}
				switch x {
				case 0:
					ins.Mnemonic = rotNames[y] + " " + r8Names[z]
					ins.Category = Rotate
					if mem {
						ins.Cycles = 11
					}
					ins.Exec = func(c *CPU) int {
						if mem {
							a := c.HL()
							var v byte
							v, c.F = shiftOp(y, c.read8(a), c.F)
							c.write8(a, v)
							return 0
						}
						v, f := shiftOp(y, c.reg8(-1, z), c.F)
						c.setReg8(-1, z, v)
						c.F = f
						return 0
					}
				case 1:
					ins.Mnemonic = fmt.Sprintf("BIT %d,%s", y, r8Names[z])
					ins.Category = BitManip
					if mem {
						ins.Cycles = 8
					}
					ins.Exec = func(c *CPU) int {
						var v byte
						if mem {
							v = c.read8(c.HL())
						} else {
							v = c.reg8(-1, z)
						}
						c.F = bitTest(y, v, c.F)
						return 0
					}
				default:
					set := x == 3
					name := "RES"
					if set {
						name = "SET"
					}
					ins.Mnemonic = fmt.Sprintf("%s %d,%s", name, y, r8Names[z])
					ins.Category = BitManip
					if mem {
						ins.Cycles = 11
					}
					mask := byte(1) << y
					ins.Exec = func(c *CPU) int {
						if mem {
							a := c.HL()
							c.write8(a, setBit(c.read8(a), mask, set))
							return 0
						}
						c.setReg8(-1, z, setBit(c.reg8(-1, z), mask, set))
						return 0
					}
				}
				t[op] = &ins
			}
		}
	}
}

func setBit(v, mask byte, on bool) byte {
	if on {
		return v | mask
	}
	return v &^ mask
}

// buildIndexBit fills DD CB d op or FD CB d op. The displacement has
// already been read by the engine. Rotates, RES and SET with a register
// field other than 6 also copy the result into that register.
func buildIndexBit(t *[256]*Instruction, idx int) {
	target := "(" + indexModes[idx].pair + "+d)"
	for x := range 4 {
		for y := range 8 {
			for z := range 8 {
				op := x<<6 | y<<3 | z
				suffix := ""
				if z != 6 {
					suffix = "," + r8Names[z]
				}
				ins := Instruction{Length: 4, Cycles: 15, Operand: OpDisp}
				switch x {
				case 0:
					ins.Mnemonic = rotNames[y] + " " + target + suffix
					ins.Category = Rotate
					ins.Exec = func(c *CPU) int {
						a := c.indexedAddr(idx)
						var v byte
						v, c.F = shiftOp(y, c.read8(a), c.F)
						c.write8(a, v)
						if z != 6 {
							c.setReg8(-1, z, v)
						}
						return 0
					}
				case 1:
					ins.Mnemonic = fmt.Sprintf("BIT %d,%s", y, target)
					ins.Category = BitManip
					ins.Cycles = 12
					ins.Exec = func(c *CPU) int {
						c.F = bitTest(y, c.read8(c.indexedAddr(idx)), c.F)
						return 0
					}
				default:
					set := x == 3
					name := "RES"
					if set {
						name = "SET"
					}
					ins.Mnemonic = fmt.Sprintf("%s %d,%s%s", name, y, target, suffix)
					ins.Category = BitManip
					mask := byte(1) << y
					ins.Exec = func(c *CPU) int {
						a := c.indexedAddr(idx)
						v := setBit(c.read8(a), mask, set)
						c.write8(a, v)
						if z != 6 {
							c.setReg8(-1, z, v)
						}
						return 0
					}
				}
				t[op] = &ins
			}
		}
	}
}

func buildED(t *[256]*Instruction) {
	put := func(op int, ins Instruction) { t[op] = &ins }

	for r := range 8 {
		inName, outName := "IN "+r8Names[r]+",(C)", "OUT (C),"+r8Names[r]
		if r == 6 {
			inName, outName = "IN (C)", "OUT (C),0"
		}
		put(0x40|r<<3, Instruction{Mnemonic: inName, Length: 2, Cycles: 8, Category: IO,
			Exec: func(c *CPU) int {
				v := c.in(c.C)
				c.F = szxyp(v) | c.F&FlagC
				if r != 6 {
					c.setReg8(-1, r, v)
				}
				return 0
			}})
		put(0x41|r<<3, Instruction{Mnemonic: outName, Length: 2, Cycles: 8, Category: IO,
			Exec: func(c *CPU) int {
				var v byte
				if r != 6 {
					v = c.reg8(-1, r)
				}
				c.out(c.C, v)
				return 0
			}})
		put(0x44|r<<3, Instruction{Mnemonic: "NEG", Length: 2, Cycles: 4, Category: Arithmetic,
			Exec: func(c *CPU) int {
				c.A, c.F = neg8(c.A)
				return 0
			}})
		if r == 1 {
			put(0x4D, Instruction{Mnemonic: "RETI", Length: 2, Cycles: 10, Category: Return,
				Exec: func(c *CPU) int {
					c.PC = c.pop16()
					c.IFF1, c.IFF2 = true, true
					return 0
				}})
		} else {
			put(0x45|r<<3, Instruction{Mnemonic: "RETN", Length: 2, Cycles: 10, Category: Return,
				Exec: func(c *CPU) int {
					c.PC = c.pop16()
					c.IFF1 = c.IFF2
					return 0
				}})
		}
		mode := imModes[r]
		put(0x46|r<<3, Instruction{Mnemonic: fmt.Sprintf("IM %d", mode), Length: 2, Cycles: 4, Category: Control,
			Exec: func(c *CPU) int {
				c.IM = mode
				return 0
			}})
	}

	for p := range 4 {
		put(0x42|p<<4, Instruction{Mnemonic: "SBC HL," + rpNames[p], Length: 2, Cycles: 11, Category: Arithmetic,
			Exec: func(c *CPU) int {
				v, f := sbc16(c.HL(), c.rp(-1, p), c.F.Carry())
				c.SetHL(v)
				c.F = f
				return 0
			}})
		put(0x4A|p<<4, Instruction{Mnemonic: "ADC HL," + rpNames[p], Length: 2, Cycles: 11, Category: Arithmetic,
			Exec: func(c *CPU) int {
				v, f := adc16(c.HL(), c.rp(-1, p), c.F.Carry())
				c.SetHL(v)
				c.F = f
				return 0
			}})
		put(0x43|p<<4, Instruction{Mnemonic: "LD (nn)," + rpNames[p], Length: 4, Cycles: 16, Category: Load, Operand: OpNN,
			Exec: func(c *CPU) int {
				c.write16(c.imm16(), c.rp(-1, p))
				return 0
			}})
		put(0x4B|p<<4, Instruction{Mnemonic: "LD " + rpNames[p] + ",(nn)", Length: 4, Cycles: 16, Category: Load, Operand: OpNN,
			Exec: func(c *CPU) int {
				c.setRP(-1, p, c.read16(c.imm16()))
				return 0
			}})
	}

	put(0x47, Instruction{Mnemonic: "LD I,A", Length: 2, Cycles: 5, Category: Load,
		Exec: func(c *CPU) int { c.I = c.A; return 0 }})
	put(0x4F, Instruction{Mnemonic: "LD R,A", Length: 2, Cycles: 5, Category: Load,
		Exec: func(c *CPU) int { c.R = c.A; return 0 }})
	put(0x57, Instruction{Mnemonic: "LD A,I", Length: 2, Cycles: 5, Category: Load,
		Exec: func(c *CPU) int {
			c.A = c.I
			c.F = szxy(c.A) | boolFlag(c.IFF2, FlagPV) | c.F&FlagC
			return 0
		}})
	put(0x5F, Instruction{Mnemonic: "LD A,R", Length: 2, Cycles: 5, Category: Load,
		Exec: func(c *CPU) int {
			c.A = c.R
			c.F = szxy(c.A) | boolFlag(c.IFF2, FlagPV) | c.F&FlagC
			return 0
		}})
	put(0x67, Instruction{Mnemonic: "RRD", Length: 2, Cycles: 14, Category: Rotate,
		Exec: func(c *CPU) int {
			a := c.HL()
			v := c.read8(a)
			c.write8(a, c.A<<4|v>>4)
			c.A = c.A&0xF0 | v&0x0F
			c.F = szxyp(c.A) | c.F&FlagC
			return 0
		}})
	put(0x6F, Instruction{Mnemonic: "RLD", Length: 2, Cycles: 14, Category: Rotate,
		Exec: func(c *CPU) int {
			a := c.HL()
			v := c.read8(a)
			c.write8(a, v<<4|c.A&0x0F)
			c.A = c.A&0xF0 | v>>4
			c.F = szxyp(c.A) | c.F&FlagC
			return 0
		}})

	// Block group: 0xA0 | repeat<<4 | decrement<<3 | kind.
	for kind := range 4 {
		step := blockSteps[kind]
		cat := Block
		if kind >= 2 {
			cat = IO
		}
		for dir := range 2 {
			delta := uint16(1)
			if dir == 1 {
				delta = 0xFFFF
			}
			for rep := range 2 {
				op := 0xA0 | rep<<4 | dir<<3 | kind
				ins := Instruction{Mnemonic: blockNames[kind][dir][rep], Length: 2, Cycles: 12, Category: cat}
				if rep == 0 {
					ins.Exec = func(c *CPU) int {
						step(c, delta)
						return 0
					}
				} else {
					ins.Exec = func(c *CPU) int {
						extra := 0
						for step(c, delta) {
							extra += 21
							c.IncrementR()
							c.IncrementR()
						}
						return extra
					}
				}
				put(op, ins)
			}
		}
	}
}

var blockNames = [4][2][2]string{
	{{"LDI", "LDIR"}, {"LDD", "LDDR"}},
	{{"CPI", "CPIR"}, {"CPD", "CPDR"}},
	{{"INI", "INIR"}, {"IND", "INDR"}},
	{{"OUTI", "OTIR"}, {"OUTD", "OTDR"}},
}

// blockSteps perform one iteration and report whether a repeating form
// should run again.
var blockSteps = [4]func(c *CPU, delta uint16) bool{
	ldStep,
	cpStep,
	inStep,
	outStep,
}

func ldStep(c *CPU, delta uint16) bool {
	v := c.read8(c.HL())
	c.write8(c.DE(), v)
	c.SetHL(c.HL() + delta)
	c.SetDE(c.DE() + delta)
	c.SetBC(c.BC() - 1)
	more := c.BC() != 0
	n := v + c.A
	c.F = c.F&(FlagS|FlagZ|FlagC) | boolFlag(more, FlagPV) |
		Flags(n)&FlagX | boolFlag(n&0x02 != 0, FlagY)
	return more
}

func cpStep(c *CPU, delta uint16) bool {
	v := c.read8(c.HL())
	r := c.A - v
	h := halfCarrySub(c.A, v, 0)
	c.SetHL(c.HL() + delta)
	c.SetBC(c.BC() - 1)
	more := c.BC() != 0
	n := r - b2u(h)
	c.F = c.F&FlagC | FlagN | signOf(r) | zeroOf(r) | boolFlag(h, FlagH) |
		boolFlag(more, FlagPV) | Flags(n)&FlagX | boolFlag(n&0x02 != 0, FlagY)
	return more && r != 0
}

func inStep(c *CPU, delta uint16) bool {
	c.write8(c.HL(), c.in(c.C))
	c.SetHL(c.HL() + delta)
	c.B--
	c.F = c.F&(FlagH|FlagPV|FlagC) | szxy(c.B) | FlagN
	return c.B != 0
}

func outStep(c *CPU, delta uint16) bool {
	c.B--
	c.out(c.C, c.read8(c.HL()))
	c.SetHL(c.HL() + delta)
	c.F = c.F&(FlagH|FlagPV|FlagC) | szxy(c.B) | FlagN
	return c.B != 0
}
