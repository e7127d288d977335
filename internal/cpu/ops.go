package cpu

// Register, memory and stack helpers used by the executors. idx selects
// what H, L and HL mean: -1 for the plain registers, 0 for IX, 1 for IY.

func (c *CPU) read8(addr uint16) byte { return c.mem.Read(addr) }

func (c *CPU) write8(addr uint16, v byte) { c.mem.Write(addr, v) }

func (c *CPU) read16(addr uint16) uint16 {
	return pair(c.mem.Read(addr+1), c.mem.Read(addr))
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.mem.Write(addr, byte(v))
	c.mem.Write(addr+1, byte(v>>8))
}

// imm8 reads the next operand byte of the current instruction.
func (c *CPU) imm8() byte {
	v := c.mem.Read(c.operand)
	c.operand++
	return v
}

func (c *CPU) imm16() uint16 {
	lo := c.imm8()
	hi := c.imm8()
	return pair(hi, lo)
}

func (c *CPU) push16(v uint16) {
	c.SP--
	c.mem.Write(c.SP, byte(v>>8))
	c.SP--
	c.mem.Write(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	lo := c.mem.Read(c.SP)
	c.SP++
	hi := c.mem.Read(c.SP)
	c.SP++
	return pair(hi, lo)
}

func (c *CPU) in(port byte) byte { return c.mem.Read(PortBase | uint16(port)) }

func (c *CPU) out(port, v byte) { c.mem.Write(PortBase|uint16(port), v) }

func (c *CPU) hl(idx int) uint16 {
	switch idx {
	case 0:
		return c.IX
	case 1:
		return c.IY
	}
	return c.HL()
}

func (c *CPU) setHL16(idx int, v uint16) {
	switch idx {
	case 0:
		c.IX = v
	case 1:
		c.IY = v
	default:
		c.SetHL(v)
	}
}

// memAddr resolves the (HL) operand; for the index registers it consumes
// the displacement byte.
func (c *CPU) memAddr(idx int) uint16 {
	if idx < 0 {
		return c.HL()
	}
	d := int8(c.imm8())
	return c.hl(idx) + uint16(int16(d))
}

// indexedAddr is the DD CB / FD CB operand address.
func (c *CPU) indexedAddr(idx int) uint16 {
	return c.hl(idx) + uint16(int16(c.disp))
}

// reg8 reads register i in B,C,D,E,H,L,-,A order. i must not be 6.
func (c *CPU) reg8(idx, i int) byte {
	switch i {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return byte(c.hl(idx) >> 8)
	case 5:
		return byte(c.hl(idx))
	case 7:
		return c.A
	}
	panic("cpu: reg8 called for the memory operand")
}

func (c *CPU) setReg8(idx, i int, v byte) {
	switch i {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.setHL16(idx, uint16(v)<<8|c.hl(idx)&0x00FF)
	case 5:
		c.setHL16(idx, c.hl(idx)&0xFF00|uint16(v))
	case 7:
		c.A = v
	default:
		panic("cpu: setReg8 called for the memory operand")
	}
}

// rp is the BC, DE, HL, SP pair group.
func (c *CPU) rp(idx, p int) uint16 {
	switch p {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.hl(idx)
	}
	return c.SP
}

func (c *CPU) setRP(idx, p int, v uint16) {
	switch p {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.setHL16(idx, v)
	default:
		c.SP = v
	}
}

// rp2 is the PUSH/POP group, with AF in place of SP.
func (c *CPU) rp2(idx, p int) uint16 {
	if p == 3 {
		return c.AF()
	}
	return c.rp(idx, p)
}

func (c *CPU) setRP2(idx, p int, v uint16) {
	if p == 3 {
		c.SetAF(v)
		return
	}
	c.setRP(idx, p, v)
}

// cond evaluates NZ, Z, NC, C, PO, PE, P, M.
func (c *CPU) cond(cc int) bool {
	var on bool
	switch cc >> 1 {
	case 0:
		on = c.F.Zero()
	case 1:
		on = c.F.Carry()
	case 2:
		on = c.F.Parity()
	default:
		on = c.F.Sign()
	}
	return on == (cc&1 == 1)
}

// alu applies ADD, ADC, SUB, SBC, AND, XOR, OR or CP to A.
func (c *CPU) alu(op int, v byte) {
	switch op {
	case 0:
		c.A, c.F = add8(c.A, v, false)
	case 1:
		c.A, c.F = add8(c.A, v, c.F.Carry())
	case 2:
		c.A, c.F = sub8(c.A, v, false)
	case 3:
		c.A, c.F = sub8(c.A, v, c.F.Carry())
	case 4:
		c.A, c.F = and8(c.A, v)
	case 5:
		c.A, c.F = xor8(c.A, v)
	case 6:
		c.A, c.F = or8(c.A, v)
	default:
		c.F = cp8(c.A, v)
	}
}
