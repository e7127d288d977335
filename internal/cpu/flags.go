package cpu

import "math/bits"

// Flags is the F register. The byte is the only storage, so the packed
// value and the per-flag view can never disagree.
type Flags byte

const (
	FlagC  Flags = 1 << iota // carry
	FlagN                    // add/subtract
	FlagPV                   // parity/overflow
	FlagX                    // undocumented, bit 3
	FlagH                    // half carry
	FlagY                    // undocumented, bit 5
	FlagZ                    // zero
	FlagS                    // sign
)

func (f Flags) Has(m Flags) bool { return f&m != 0 }

func (f *Flags) Set(m Flags, on bool) {
	if on {
		*f |= m
	} else {
		*f &^= m
	}
}

func (f Flags) Carry() bool    { return f&FlagC != 0 }
func (f Flags) Subtract() bool { return f&FlagN != 0 }
func (f Flags) Parity() bool   { return f&FlagPV != 0 }
func (f Flags) Half() bool     { return f&FlagH != 0 }
func (f Flags) Zero() bool     { return f&FlagZ != 0 }
func (f Flags) Sign() bool     { return f&FlagS != 0 }

// String renders the flags as SZYHXPNC, '-' for clear bits.
func (f Flags) String() string {
	const names = "SZYHXPNC"
	out := []byte(names)
	for i := 0; i < 8; i++ {
		if f&(0x80>>i) == 0 {
			out[i] = '-'
		}
	}
	return string(out)
}

// FlagByName maps a single-letter flag name to its mask.
func FlagByName(name string) (Flags, bool) {
	switch name {
	case "S", "s":
		return FlagS, true
	case "Z", "z":
		return FlagZ, true
	case "Y", "y":
		return FlagY, true
	case "H", "h":
		return FlagH, true
	case "X", "x":
		return FlagX, true
	case "P", "p", "PV", "pv", "V", "v":
		return FlagPV, true
	case "N", "n":
		return FlagN, true
	case "C", "c":
		return FlagC, true
	}
	return 0, false
}

func boolFlag(on bool, m Flags) Flags {
	if on {
		return m
	}
	return 0
}

func signOf(v byte) Flags { return Flags(v) & FlagS }

func zeroOf(v byte) Flags { return boolFlag(v == 0, FlagZ) }

// parityOf sets PV for an even number of one bits.
func parityOf(v byte) Flags { return boolFlag(bits.OnesCount8(v)%2 == 0, FlagPV) }

// xyOf copies bits 5 and 3 of v.
func xyOf(v byte) Flags { return Flags(v) & (FlagY | FlagX) }

// szxy is the common S, Z, Y, X group taken from one value.
func szxy(v byte) Flags { return signOf(v) | zeroOf(v) | xyOf(v) }

// szxyp adds even parity, as logic, rotate and IN do.
func szxyp(v byte) Flags { return szxy(v) | parityOf(v) }

func halfCarryAdd(a, b, carry byte) bool { return (a&0x0F)+(b&0x0F)+carry > 0x0F }

func halfCarrySub(a, b, carry byte) bool { return int(a&0x0F)-int(b&0x0F)-int(carry) < 0 }

func overflowAdd(a, b, r byte) bool { return (a^r)&(b^r)&0x80 != 0 }

func overflowSub(a, b, r byte) bool { return (a^b)&(a^r)&0x80 != 0 }

func halfCarryAdd16(a, b, carry uint16) bool { return (a&0x0FFF)+(b&0x0FFF)+carry > 0x0FFF }

func halfCarrySub16(a, b, carry uint16) bool {
	return int(a&0x0FFF)-int(b&0x0FFF)-int(carry) < 0
}

func overflowAdd16(a, b, r uint16) bool { return (a^r)&(b^r)&0x8000 != 0 }

func overflowSub16(a, b, r uint16) bool { return (a^b)&(a^r)&0x8000 != 0 }
