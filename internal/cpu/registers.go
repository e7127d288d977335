package cpu

// Registers is the programmer-visible register file, including the
// alternate set used by EX AF,AF' and EXX.
type Registers struct {
	A, B, C, D, E, H, L byte
	F                   Flags

	A2, B2, C2, D2, E2, H2, L2 byte
	F2                         Flags

	I, R   byte
	IX, IY uint16
	SP, PC uint16
}

func pair(hi, lo byte) uint16 { return uint16(hi)<<8 | uint16(lo) }

func split(v uint16) (byte, byte) { return byte(v >> 8), byte(v) }

func (r *Registers) AF() uint16 { return pair(r.A, byte(r.F)) }
func (r *Registers) BC() uint16 { return pair(r.B, r.C) }
func (r *Registers) DE() uint16 { return pair(r.D, r.E) }
func (r *Registers) HL() uint16 { return pair(r.H, r.L) }

func (r *Registers) SetAF(v uint16) {
	var f byte
	r.A, f = split(v)
	r.F = Flags(f)
}
func (r *Registers) SetBC(v uint16) { r.B, r.C = split(v) }
func (r *Registers) SetDE(v uint16) { r.D, r.E = split(v) }
func (r *Registers) SetHL(v uint16) { r.H, r.L = split(v) }

func (r *Registers) AF2() uint16 { return pair(r.A2, byte(r.F2)) }
func (r *Registers) BC2() uint16 { return pair(r.B2, r.C2) }
func (r *Registers) DE2() uint16 { return pair(r.D2, r.E2) }
func (r *Registers) HL2() uint16 { return pair(r.H2, r.L2) }

func (r *Registers) SetAF2(v uint16) {
	var f byte
	r.A2, f = split(v)
	r.F2 = Flags(f)
}
func (r *Registers) SetBC2(v uint16) { r.B2, r.C2 = split(v) }
func (r *Registers) SetDE2(v uint16) { r.D2, r.E2 = split(v) }
func (r *Registers) SetHL2(v uint16) { r.H2, r.L2 = split(v) }

func (r *Registers) IXH() byte { return byte(r.IX >> 8) }
func (r *Registers) IXL() byte { return byte(r.IX) }
func (r *Registers) IYH() byte { return byte(r.IY >> 8) }
func (r *Registers) IYL() byte { return byte(r.IY) }

// ExAF swaps AF with AF'.
func (r *Registers) ExAF() {
	r.A, r.A2 = r.A2, r.A
	r.F, r.F2 = r.F2, r.F
}

// Exx swaps BC, DE and HL with their alternates.
func (r *Registers) Exx() {
	r.B, r.C, r.B2, r.C2 = r.B2, r.C2, r.B, r.C
	r.D, r.E, r.D2, r.E2 = r.D2, r.E2, r.D, r.E
	r.H, r.L, r.H2, r.L2 = r.H2, r.L2, r.H, r.L
}

// ExchangeAll swaps the whole main set with the alternate set.
func (r *Registers) ExchangeAll() {
	r.ExAF()
	r.Exx()
}

// IncrementR advances the low seven bits of R. Bit 7 is only changed by LD R,A.
func (r *Registers) IncrementR() {
	r.R = r.R&0x80 | (r.R+1)&0x7F
}

// Pair returns a register pair by name (AF, BC, DE, HL, IX, IY, SP, PC and
// the primed alternates).
func (r *Registers) Pair(name string) (uint16, bool) {
	switch name {
	case "AF":
		return r.AF(), true
	case "BC":
		return r.BC(), true
	case "DE":
		return r.DE(), true
	case "HL":
		return r.HL(), true
	case "AF'":
		return r.AF2(), true
	case "BC'":
		return r.BC2(), true
	case "DE'":
		return r.DE2(), true
	case "HL'":
		return r.HL2(), true
	case "IX":
		return r.IX, true
	case "IY":
		return r.IY, true
	case "SP":
		return r.SP, true
	case "PC":
		return r.PC, true
	}
	return 0, false
}

// SetPair is the write side of Pair.
func (r *Registers) SetPair(name string, v uint16) bool {
	switch name {
	case "AF":
		r.SetAF(v)
	case "BC":
		r.SetBC(v)
	case "DE":
		r.SetDE(v)
	case "HL":
		r.SetHL(v)
	case "AF'":
		r.SetAF2(v)
	case "BC'":
		r.SetBC2(v)
	case "DE'":
		r.SetDE2(v)
	case "HL'":
		r.SetHL2(v)
	case "IX":
		r.IX = v
	case "IY":
		r.IY = v
	case "SP":
		r.SP = v
	case "PC":
		r.PC = v
	default:
		return false
	}
	return true
}

// Reg8 returns an 8-bit register by name.
func (r *Registers) Reg8(name string) (byte, bool) {
	switch name {
	case "A":
		return r.A, true
	case "F":
		return byte(r.F), true
	case "B":
		return r.B, true
	case "C":
		return r.C, true
	case "D":
		return r.D, true
	case "E":
		return r.E, true
	case "H":
		return r.H, true
	case "L":
		return r.L, true
	case "I":
		return r.I, true
	case "R":
		return r.R, true
	case "IXH":
		return r.IXH(), true
	case "IXL":
		return r.IXL(), true
	case "IYH":
		return r.IYH(), true
	case "IYL":
		return r.IYL(), true
	}
	return 0, false
}

// SetReg8 is the write side of Reg8.
func (r *Registers) SetReg8(name string, v byte) bool {
	switch name {
	case "A":
		r.A = v
	case "F":
		r.F = Flags(v)
	case "B":
		r.B = v
	case "C":
		r.C = v
	case "D":
		r.D = v
	case "E":
		r.E = v
	case "H":
		r.H = v
	case "L":
		r.L = v
	case "I":
		r.I = v
	case "R":
		r.R = v
	case "IXH":
		r.IX = pair(v, r.IXL())
	case "IXL":
		r.IX = pair(r.IXH(), v)
	case "IYH":
		r.IY = pair(v, r.IYL())
	case "IYL":
		r.IY = pair(r.IYH(), v)
	default:
		return false
	}
	return true
}
