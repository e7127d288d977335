package cpu

// 8-bit and 16-bit arithmetic. Every helper takes the operands before
// mutation and returns the result with its complete flag byte; callers
// decide where the result goes.

func b2u(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func add8(a, b byte, carry bool) (byte, Flags) {
	ci := b2u(carry)
	sum := uint16(a) + uint16(b) + uint16(ci)
	r := byte(sum)
	f := szxy(r) |
		boolFlag(halfCarryAdd(a, b, ci), FlagH) |
		boolFlag(overflowAdd(a, b, r), FlagPV) |
		boolFlag(sum > 0xFF, FlagC)
	return r, f
}

func sub8(a, b byte, carry bool) (byte, Flags) {
	ci := b2u(carry)
	diff := int(a) - int(b) - int(ci)
	r := byte(diff)
	f := szxy(r) | FlagN |
		boolFlag(halfCarrySub(a, b, ci), FlagH) |
		boolFlag(overflowSub(a, b, r), FlagPV) |
		boolFlag(diff < 0, FlagC)
	return r, f
}

// cp8 subtracts for flags only. Y and X come from the operand, not the result.
func cp8(a, b byte) Flags {
	_, f := sub8(a, b, false)
	return f&^(FlagY|FlagX) | xyOf(b)
}

func and8(a, b byte) (byte, Flags) {
	r := a & b
	return r, szxyp(r) | FlagH
}

func xor8(a, b byte) (byte, Flags) {
	r := a ^ b
	return r, szxyp(r)
}

func or8(a, b byte) (byte, Flags) {
	r := a | b
	return r, szxyp(r)
}

// inc8 leaves carry as it was.
func inc8(v byte, old Flags) (byte, Flags) {
	r := v + 1
	f := szxy(r) | old&FlagC |
		boolFlag(v&0x0F == 0x0F, FlagH) |
		boolFlag(v == 0x7F, FlagPV)
	return r, f
}

func dec8(v byte, old Flags) (byte, Flags) {
	r := v - 1
	f := szxy(r) | old&FlagC | FlagN |
		boolFlag(v&0x0F == 0x00, FlagH) |
		boolFlag(v == 0x80, FlagPV)
	return r, f
}

func neg8(a byte) (byte, Flags) { return sub8(0, a, false) }

// daa applies the BCD correction. H always ends up clear and C is set
// whenever the high-nibble correction was applied.
func daa(a byte, old Flags) (byte, Flags) {
	var adjust byte
	if old.Half() || a&0x0F > 9 {
		adjust |= 0x06
	}
	if old.Carry() || a > 0x99 {
		adjust |= 0x60
	}
	r := a + adjust
	if old.Subtract() {
		r = a - adjust
	}
	f := szxyp(r) | old&FlagN | boolFlag(adjust&0x60 != 0, FlagC)
	return r, f
}

// add16 is ADD HL/IX/IY,rr: S, Z and PV survive, Y and X from the high byte.
func add16(a, b uint16, old Flags) (uint16, Flags) {
	sum := uint32(a) + uint32(b)
	r := uint16(sum)
	f := old&(FlagS|FlagZ|FlagPV) | xyOf(byte(r>>8)) |
		boolFlag(halfCarryAdd16(a, b, 0), FlagH) |
		boolFlag(sum > 0xFFFF, FlagC)
	return r, f
}

func adc16(a, b uint16, carry bool) (uint16, Flags) {
	ci := uint16(b2u(carry))
	sum := uint32(a) + uint32(b) + uint32(ci)
	r := uint16(sum)
	hi := byte(r >> 8)
	f := signOf(hi) | xyOf(hi) | boolFlag(r == 0, FlagZ) |
		boolFlag(halfCarryAdd16(a, b, ci), FlagH) |
		boolFlag(overflowAdd16(a, b, r), FlagPV) |
		boolFlag(sum > 0xFFFF, FlagC)
	return r, f
}

func sbc16(a, b uint16, carry bool) (uint16, Flags) {
	ci := uint16(b2u(carry))
	diff := int(a) - int(b) - int(ci)
	r := uint16(diff)
	hi := byte(r >> 8)
	f := signOf(hi) | xyOf(hi) | boolFlag(r == 0, FlagZ) | FlagN |
		boolFlag(halfCarrySub16(a, b, ci), FlagH) |
		boolFlag(overflowSub16(a, b, r), FlagPV) |
		boolFlag(diff < 0, FlagC)
	return r, f
}

// Shift and rotate kernels shared by the CB group and the accumulator forms.
// Each returns the result and the bit shifted out.

func rlc(v byte) (byte, bool) { return v<<1 | v>>7, v&0x80 != 0 }

func rrc(v byte) (byte, bool) { return v>>1 | v<<7, v&0x01 != 0 }

func rl(v byte, c bool) (byte, bool) { return v<<1 | b2u(c), v&0x80 != 0 }

func rr(v byte, c bool) (byte, bool) { return v>>1 | b2u(c)<<7, v&0x01 != 0 }

func sla(v byte) (byte, bool) { return v << 1, v&0x80 != 0 }

func sra(v byte) (byte, bool) { return v>>1 | v&0x80, v&0x01 != 0 }

// sll is the undocumented shift that feeds a 1 into bit 0.
func sll(v byte) (byte, bool) { return v<<1 | 1, v&0x80 != 0 }

func srl(v byte) (byte, bool) { return v >> 1, v&0x01 != 0 }

// shiftOp indexes the CB rotate group by bits 5..3 of the opcode.
func shiftOp(op int, v byte, old Flags) (byte, Flags) {
	var r byte
	var out bool
	switch op {
	case 0:
		r, out = rlc(v)
	case 1:
		r, out = rrc(v)
	case 2:
		r, out = rl(v, old.Carry())
	case 3:
		r, out = rr(v, old.Carry())
	case 4:
		r, out = sla(v)
	case 5:
		r, out = sra(v)
	case 6:
		r, out = sll(v)
	default:
		r, out = srl(v)
	}
	return r, szxyp(r) | boolFlag(out, FlagC)
}

// rotateA is RLCA/RRCA/RLA/RRA: S, Z and PV survive, H and N clear.
func rotateA(op int, a byte, old Flags) (byte, Flags) {
	var r byte
	var out bool
	switch op {
	case 0:
		r, out = rlc(a)
	case 1:
		r, out = rrc(a)
	case 2:
		r, out = rl(a, old.Carry())
	default:
		r, out = rr(a, old.Carry())
	}
	return r, old&(FlagS|FlagZ|FlagPV) | xyOf(r) | boolFlag(out, FlagC)
}

// bitTest is BIT n: Z and PV when the bit is clear, S only for bit 7 set,
// Y and X from the tested value.
func bitTest(n int, v byte, old Flags) Flags {
	set := v&(1<<n) != 0
	f := old&FlagC | FlagH | xyOf(v)
	if !set {
		f |= FlagZ | FlagPV
	}
	if n == 7 && set {
		f |= FlagS
	}
	return f
}
