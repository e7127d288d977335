package cpu

import (
	"bytes"
	"errors"
	"math/bits"
	"testing"

	"github.com/FabianRolfMatthiasNoll/z80emu/internal/bus"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/emuerr"
	"github.com/FabianRolfMatthiasNoll/z80emu/internal/event"
)

func newCPUWithProgram(code []byte) *CPU {
	b := bus.New()
	c := New(b)
	if err := c.LoadProgram(0x0000, code); err != nil {
		panic(err)
	}
	return c
}

func mustStep(t *testing.T, c *CPU) int {
	t.Helper()
	n, err := c.Step()
	if err != nil {
		t.Fatalf("step at %04x: %v", c.PC, err)
	}
	return n
}

func TestCPU_PowerOnState(t *testing.T) {
	c := New(bus.New())
	if c.PC != 0 || c.SP != 0xFFFF {
		t.Fatalf("PC/SP got %04x/%04x want 0000/FFFF", c.PC, c.SP)
	}
	if c.IFF1 || c.IFF2 || c.IM != 0 || c.Halted() {
		t.Fatalf("interrupt state not cleared")
	}
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithProgram([]byte{0x00})
	if cycles := mustStep(t, c); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
	if c.R != 1 {
		t.Fatalf("R after NOP got %02x want 01", c.R)
	}
}

func TestCPU_LoadAddProgram(t *testing.T) {
	// LD A,0x42; LD B,0x10; ADD A,B
	c := newCPUWithProgram([]byte{0x3E, 0x42, 0x06, 0x10, 0x80})
	total := 0
	for i := 0; i < 3; i++ {
		total += mustStep(t, c)
	}
	if c.A != 0x52 {
		t.Fatalf("A got %02x want 52", c.A)
	}
	if c.B != 0x10 {
		t.Fatalf("B got %02x want 10", c.B)
	}
	if c.PC != 5 {
		t.Fatalf("PC got %04x want 0005", c.PC)
	}
	if c.F.Zero() {
		t.Fatalf("Z set after ADD with nonzero result")
	}
	if total != 7+7+4 {
		t.Fatalf("cycles got %d want 18", total)
	}
	if c.Cycles() != 18 {
		t.Fatalf("clock got %d want 18", c.Cycles())
	}
}

func TestCPU_IncDecRoundTrip(t *testing.T) {
	c := newCPUWithProgram([]byte{0x3C, 0x3D}) // INC A; DEC A
	for v := 0; v < 256; v++ {
		c.PC = 0
		c.A = byte(v)
		mustStep(t, c)
		if c.A != byte(v+1) {
			t.Fatalf("INC %02x got %02x", v, c.A)
		}
		mustStep(t, c)
		if c.A != byte(v) {
			t.Fatalf("INC/DEC %02x came back as %02x", v, c.A)
		}
	}
}

func TestCPU_Inc7F(t *testing.T) {
	c := newCPUWithProgram([]byte{0x3C})
	c.A = 0x7F
	c.F = FlagC | FlagN
	mustStep(t, c)
	if c.A != 0x80 {
		t.Fatalf("A got %02x want 80", c.A)
	}
	checks := []struct {
		name string
		flag Flags
		want bool
	}{
		{"S", FlagS, true},
		{"Z", FlagZ, false},
		{"H", FlagH, true},
		{"PV", FlagPV, true},
		{"N", FlagN, false},
		{"C", FlagC, true}, // preserved
	}
	for _, ck := range checks {
		if c.F.Has(ck.flag) != ck.want {
			t.Fatalf("flag %s got %v want %v (F=%s)", ck.name, !ck.want, ck.want, c.F)
		}
	}
}

func TestCPU_ParityOfLogicResults(t *testing.T) {
	c := newCPUWithProgram([]byte{0xF6, 0x00}) // OR 0
	for v := 0; v < 256; v++ {
		c.PC = 0
		c.A = byte(v)
		mustStep(t, c)
		even := bits.OnesCount8(byte(v))%2 == 0
		if c.F.Parity() != even {
			t.Fatalf("OR %02x: PV got %v want %v", v, c.F.Parity(), even)
		}
	}
}

func TestCPU_PushPopRoundTrip(t *testing.T) {
	// LD BC,0x1234; PUSH BC; LD BC,0; POP BC
	c := newCPUWithProgram([]byte{0x01, 0x34, 0x12, 0xC5, 0x01, 0x00, 0x00, 0xC1})
	c.SP = 0xF000
	cycles := []int{10, 11, 10, 10}
	for i, want := range cycles {
		if got := mustStep(t, c); got != want {
			t.Fatalf("step %d cycles got %d want %d", i, got, want)
		}
	}
	if c.BC() != 0x1234 {
		t.Fatalf("BC got %04x want 1234", c.BC())
	}
	if c.SP != 0xF000 {
		t.Fatalf("SP got %04x want F000", c.SP)
	}
}

func TestCPU_PushPopAF(t *testing.T) {
	c := newCPUWithProgram([]byte{0xF5, 0xC1}) // PUSH AF; POP BC
	c.SP = 0x8000
	c.SetAF(0xA5C3)
	mustStep(t, c)
	mustStep(t, c)
	if c.BC() != 0xA5C3 {
		t.Fatalf("BC got %04x want A5C3", c.BC())
	}
}

func TestCPU_LDIR(t *testing.T) {
	c := newCPUWithProgram([]byte{0xED, 0xB0})
	mem := c.Memory()
	for i, v := range []byte{0x11, 0x22, 0x33} {
		mem.Write(0x1000+uint16(i), v)
	}
	c.SetHL(0x1000)
	c.SetDE(0x2000)
	c.SetBC(3)
	cycles := mustStep(t, c)
	for i, want := range []byte{0x11, 0x22, 0x33} {
		if got := mem.Read(0x2000 + uint16(i)); got != want {
			t.Fatalf("dest[%d] got %02x want %02x", i, got, want)
		}
	}
	if mem.Read(0x2003) != 0 {
		t.Fatalf("LDIR copied past the count")
	}
	if c.BC() != 0 || c.F.Parity() {
		t.Fatalf("BC=%04x PV=%v want 0000/false", c.BC(), c.F.Parity())
	}
	if c.HL() != 0x1003 || c.DE() != 0x2003 {
		t.Fatalf("HL/DE got %04x/%04x want 1003/2003", c.HL(), c.DE())
	}
	if cycles != 21+21+16 {
		t.Fatalf("cycles got %d want 58", cycles)
	}
	if c.PC != 2 {
		t.Fatalf("PC got %04x want 0002", c.PC)
	}
	// ED, B0 and two extra iterations worth of refresh
	if c.R != 2+4 {
		t.Fatalf("R got %d want 6", c.R)
	}
}

func TestCPU_LDISinglePV(t *testing.T) {
	c := newCPUWithProgram([]byte{0xED, 0xA0})
	c.SetHL(0x1000)
	c.SetDE(0x2000)
	c.SetBC(2)
	if cycles := mustStep(t, c); cycles != 16 {
		t.Fatalf("LDI cycles got %d want 16", cycles)
	}
	if !c.F.Parity() || c.BC() != 1 {
		t.Fatalf("LDI with BC=2: PV=%v BC=%04x", c.F.Parity(), c.BC())
	}
}

func TestCPU_CPIRStopsOnMatch(t *testing.T) {
	c := newCPUWithProgram([]byte{0xED, 0xB1})
	if err := c.Memory().Load(0x1000, []byte("abcd")); err != nil {
		t.Fatal(err)
	}
	c.A = 'c'
	c.SetHL(0x1000)
	c.SetBC(10)
	cycles := mustStep(t, c)
	if c.HL() != 0x1003 || c.BC() != 7 {
		t.Fatalf("HL/BC got %04x/%04x want 1003/0007", c.HL(), c.BC())
	}
	if !c.F.Zero() || !c.F.Parity() || !c.F.Subtract() {
		t.Fatalf("flags got %s want Z, PV and N", c.F)
	}
	if cycles != 21+21+16 {
		t.Fatalf("cycles got %d want 58", cycles)
	}
}

func TestCPU_DAA(t *testing.T) {
	c := newCPUWithProgram([]byte{0x27})
	c.A = 0x9A
	c.F = 0
	mustStep(t, c)
	if c.A != 0x00 {
		t.Fatalf("A got %02x want 00", c.A)
	}
	if !c.F.Carry() || !c.F.Zero() || c.F.Half() {
		t.Fatalf("flags got %s want Z and C, H clear", c.F)
	}
}

func TestCPU_DAAAfterAdd(t *testing.T) {
	// LD A,0x15; ADD A,0x27; DAA -> 0x42
	c := newCPUWithProgram([]byte{0x3E, 0x15, 0xC6, 0x27, 0x27})
	for i := 0; i < 3; i++ {
		mustStep(t, c)
	}
	if c.A != 0x42 {
		t.Fatalf("BCD 15+27 got %02x want 42", c.A)
	}
}

func TestCPU_JumpsAndCycles(t *testing.T) {
	cases := []struct {
		name   string
		code   []byte
		flags  Flags
		pc     uint16
		cycles int
	}{
		{"JR", []byte{0x18, 0x03}, 0, 0x0005, 12},
		{"JR NZ taken", []byte{0x20, 0x03}, 0, 0x0005, 12},
		{"JR NZ not taken", []byte{0x20, 0x03}, FlagZ, 0x0002, 7},
		{"JR back", []byte{0x00, 0x18, 0xFD}, 0, 0x0000, 12},
		{"JP", []byte{0xC3, 0x34, 0x12}, 0, 0x1234, 10},
		{"JP C not taken", []byte{0xDA, 0x34, 0x12}, 0, 0x0003, 10},
		{"JP M taken", []byte{0xFA, 0x34, 0x12}, FlagS, 0x1234, 10},
		{"JP PE taken", []byte{0xEA, 0x34, 0x12}, FlagPV, 0x1234, 10},
		{"CALL", []byte{0xCD, 0x00, 0x20}, 0, 0x2000, 17},
		{"CALL Z not taken", []byte{0xCC, 0x00, 0x20}, 0, 0x0003, 10},
		{"CALL Z taken", []byte{0xCC, 0x00, 0x20}, FlagZ, 0x2000, 17},
		{"RST 28H", []byte{0xEF}, 0, 0x0028, 11},
	}
	for _, tc := range cases {
		c := newCPUWithProgram(tc.code)
		c.SP = 0x8000
		c.F = tc.flags
		var cycles int
		if tc.name == "JR back" {
			mustStep(t, c)
			cycles = mustStep(t, c)
		} else {
			cycles = mustStep(t, c)
		}
		if c.PC != tc.pc {
			t.Fatalf("%s: PC got %04x want %04x", tc.name, c.PC, tc.pc)
		}
		if cycles != tc.cycles {
			t.Fatalf("%s: cycles got %d want %d", tc.name, cycles, tc.cycles)
		}
	}
}

func TestCPU_CallRet(t *testing.T) {
	prog := make([]byte, 0x20)
	copy(prog, []byte{0xCD, 0x10, 0x00, 0x00}) // CALL 0010; NOP
	prog[0x10] = 0xC9                          // RET
	c := newCPUWithProgram(prog)
	c.SP = 0x8000
	mustStep(t, c)
	if got := c.Memory().Read(0x7FFE); got != 0x03 {
		t.Fatalf("pushed return low got %02x want 03", got)
	}
	if cycles := mustStep(t, c); cycles != 10 {
		t.Fatalf("RET cycles got %d want 10", cycles)
	}
	if c.PC != 3 || c.SP != 0x8000 {
		t.Fatalf("after RET PC/SP got %04x/%04x", c.PC, c.SP)
	}
}

func TestCPU_RetConditional(t *testing.T) {
	c := newCPUWithProgram([]byte{0xC0, 0xC0}) // RET NZ; RET NZ
	c.SP = 0x8000
	c.Memory().Write(0x8000, 0x00)
	c.Memory().Write(0x8001, 0x30)
	c.F = FlagZ
	if cycles := mustStep(t, c); cycles != 5 || c.PC != 1 {
		t.Fatalf("RET NZ not taken: cycles %d PC %04x", cycles, c.PC)
	}
	c.F = 0
	if cycles := mustStep(t, c); cycles != 11 || c.PC != 0x3000 {
		t.Fatalf("RET NZ taken: cycles %d PC %04x", cycles, c.PC)
	}
}

func TestCPU_DJNZ(t *testing.T) {
	// LD B,3; loop: INC A; DJNZ loop
	c := newCPUWithProgram([]byte{0x06, 0x03, 0x3C, 0x10, 0xFD, 0x76})
	for !c.Halted() {
		mustStep(t, c)
	}
	if c.A != 3 || c.B != 0 {
		t.Fatalf("A/B got %02x/%02x want 03/00", c.A, c.B)
	}
	if c.Cycles() != 7+3*4+2*13+8+4 {
		t.Fatalf("clock got %d want %d", c.Cycles(), 7+3*4+2*13+8+4)
	}
}

func TestCPU_Exchange(t *testing.T) {
	c := newCPUWithProgram([]byte{0x08, 0xD9, 0xEB})
	c.SetAF(0x1122)
	c.SetAF2(0x3344)
	c.SetBC(0x0102)
	c.SetDE(0x0304)
	c.SetHL(0x0506)
	c.SetBC2(0xA1A2)
	c.SetDE2(0xA3A4)
	c.SetHL2(0xA5A6)
	mustStep(t, c)
	if c.AF() != 0x3344 || c.AF2() != 0x1122 {
		t.Fatalf("EX AF,AF' got %04x/%04x", c.AF(), c.AF2())
	}
	mustStep(t, c)
	if c.BC() != 0xA1A2 || c.DE() != 0xA3A4 || c.HL() != 0xA5A6 {
		t.Fatalf("EXX main set got %04x %04x %04x", c.BC(), c.DE(), c.HL())
	}
	if c.BC2() != 0x0102 || c.DE2() != 0x0304 || c.HL2() != 0x0506 {
		t.Fatalf("EXX alternate set got %04x %04x %04x", c.BC2(), c.DE2(), c.HL2())
	}
	mustStep(t, c)
	if c.DE() != 0xA5A6 || c.HL() != 0xA3A4 {
		t.Fatalf("EX DE,HL got %04x/%04x", c.DE(), c.HL())
	}
}

func TestCPU_ExSPHL(t *testing.T) {
	c := newCPUWithProgram([]byte{0xE3})
	c.SP = 0x8000
	c.Memory().Write(0x8000, 0x78)
	c.Memory().Write(0x8001, 0x56)
	c.SetHL(0x1234)
	if cycles := mustStep(t, c); cycles != 19 {
		t.Fatalf("EX (SP),HL cycles got %d want 19", cycles)
	}
	if c.HL() != 0x5678 || c.Memory().Read(0x8000) != 0x34 || c.Memory().Read(0x8001) != 0x12 {
		t.Fatalf("EX (SP),HL swapped incorrectly")
	}
}

func TestCPU_IOPortWindow(t *testing.T) {
	b := bus.New()
	c := New(b)
	var out bytes.Buffer
	b.SetPortWriter(0x10, &out)
	// LD A,'Z'; OUT (0x10),A; LD C,0x10; LD B,'!'; OUT (C),B; IN A,(0x20); IN D,(C)
	prog := []byte{0x3E, 'Z', 0xD3, 0x10, 0x0E, 0x10, 0x06, '!', 0xED, 0x41, 0xDB, 0x20, 0xED, 0x50}
	if err := c.LoadProgram(0, prog); err != nil {
		t.Fatal(err)
	}
	b.Write(PortBase|0x20, 0x5A)
	for i := 0; i < 7; i++ {
		mustStep(t, c)
	}
	if out.String() != "Z!" {
		t.Fatalf("port output got %q want %q", out.String(), "Z!")
	}
	if c.A != 0x5A {
		t.Fatalf("IN A,(20) got %02x want 5A", c.A)
	}
	if c.D != '!' {
		t.Fatalf("IN D,(C) got %02x want %02x", c.D, '!')
	}
	if c.F.Zero() || !c.F.Parity() {
		t.Fatalf("IN D,(C) flags got %s", c.F)
	}
}

func TestCPU_InvalidOpcode(t *testing.T) {
	c := newCPUWithProgram([]byte{0x00, 0xED, 0x00})
	mustStep(t, c)
	_, err := c.Step()
	if !errors.Is(err, emuerr.ErrInvalidOpcode) {
		t.Fatalf("want invalid opcode, got %v", err)
	}
	var ie *emuerr.InvalidOpcodeError
	if !errors.As(err, &ie) || ie.PC != 1 || ie.Opcode != 0x00 || ie.Prefix != "ED" {
		t.Fatalf("error details got %+v", ie)
	}
	if c.PC != 1 {
		t.Fatalf("PC moved on error: %04x", c.PC)
	}
}

func TestCPU_RefreshRegister(t *testing.T) {
	c := newCPUWithProgram([]byte{0x00, 0xDD, 0x21, 0x00, 0x00, 0xDD, 0xCB, 0x00, 0x06})
	c.R = 0x7F | 0x80
	mustStep(t, c)
	if c.R != 0x80 {
		t.Fatalf("R wrap got %02x want 80", c.R)
	}
	mustStep(t, c)
	if c.R != 0x82 {
		t.Fatalf("R after DD 21 got %02x want 82", c.R)
	}
	mustStep(t, c)
	if c.R != 0x84 {
		t.Fatalf("R after DD CB got %02x want 84", c.R)
	}
}

func TestCPU_LdAIR(t *testing.T) {
	c := newCPUWithProgram([]byte{0xED, 0x57, 0xED, 0x47})
	c.I = 0x80
	c.IFF2 = true
	if cycles := mustStep(t, c); cycles != 9 {
		t.Fatalf("LD A,I cycles got %d want 9", cycles)
	}
	if c.A != 0x80 || !c.F.Sign() || !c.F.Parity() {
		t.Fatalf("LD A,I got A=%02x F=%s", c.A, c.F)
	}
	c.A = 0x12
	mustStep(t, c)
	if c.I != 0x12 {
		t.Fatalf("LD I,A got %02x", c.I)
	}
}

func TestCPU_RRDRLD(t *testing.T) {
	c := newCPUWithProgram([]byte{0xED, 0x67, 0xED, 0x6F})
	c.SetHL(0x5000)
	c.Memory().Write(0x5000, 0x34)
	c.A = 0x12
	if cycles := mustStep(t, c); cycles != 18 {
		t.Fatalf("RRD cycles got %d want 18", cycles)
	}
	if c.A != 0x14 || c.Memory().Read(0x5000) != 0x23 {
		t.Fatalf("RRD got A=%02x (HL)=%02x want 14/23", c.A, c.Memory().Read(0x5000))
	}
	mustStep(t, c)
	if c.A != 0x12 || c.Memory().Read(0x5000) != 0x34 {
		t.Fatalf("RLD got A=%02x (HL)=%02x want 12/34", c.A, c.Memory().Read(0x5000))
	}
}

func TestCPU_SixteenBitArithmetic(t *testing.T) {
	// ADD HL,DE; SBC HL,BC; ADC HL,HL
	c := newCPUWithProgram([]byte{0x19, 0xED, 0x42, 0xED, 0x6A})
	c.SetHL(0x8000)
	c.SetDE(0x8000)
	c.SetBC(0x0001)
	c.F = FlagZ | FlagS
	if cycles := mustStep(t, c); cycles != 11 {
		t.Fatalf("ADD HL cycles got %d", cycles)
	}
	if c.HL() != 0 || !c.F.Carry() || !c.F.Zero() || !c.F.Sign() {
		t.Fatalf("ADD HL got %04x F=%s (S and Z must survive)", c.HL(), c.F)
	}
	if cycles := mustStep(t, c); cycles != 15 {
		t.Fatalf("SBC HL cycles got %d", cycles)
	}
	if c.HL() != 0xFFFE || !c.F.Carry() || !c.F.Sign() || !c.F.Subtract() {
		t.Fatalf("SBC HL got %04x F=%s", c.HL(), c.F)
	}
	mustStep(t, c)
	if c.HL() != 0xFFFD || !c.F.Carry() {
		t.Fatalf("ADC HL,HL got %04x F=%s", c.HL(), c.F)
	}
}

func TestCPU_CBGroup(t *testing.T) {
	// RLC B; SLL A; BIT 7,(HL); SET 0,(HL); RES 7,(HL)
	c := newCPUWithProgram([]byte{0xCB, 0x00, 0xCB, 0x37, 0xCB, 0x7E, 0xCB, 0xC6, 0xCB, 0xBE})
	c.B = 0x81
	c.A = 0x80
	c.SetHL(0x4000)
	c.Memory().Write(0x4000, 0x80)
	if cycles := mustStep(t, c); cycles != 8 {
		t.Fatalf("RLC B cycles got %d want 8", cycles)
	}
	if c.B != 0x03 || !c.F.Carry() {
		t.Fatalf("RLC B got %02x F=%s", c.B, c.F)
	}
	mustStep(t, c)
	if c.A != 0x01 || !c.F.Carry() {
		t.Fatalf("SLL A got %02x F=%s", c.A, c.F)
	}
	if cycles := mustStep(t, c); cycles != 12 {
		t.Fatalf("BIT 7,(HL) cycles got %d want 12", cycles)
	}
	if c.F.Zero() || !c.F.Sign() || !c.F.Half() {
		t.Fatalf("BIT 7,(HL) flags got %s", c.F)
	}
	if cycles := mustStep(t, c); cycles != 15 {
		t.Fatalf("SET 0,(HL) cycles got %d want 15", cycles)
	}
	mustStep(t, c)
	if got := c.Memory().Read(0x4000); got != 0x01 {
		t.Fatalf("SET/RES on (HL) got %02x want 01", got)
	}
}

func TestCPU_BitCopiesXYFromValue(t *testing.T) {
	c := newCPUWithProgram([]byte{0xCB, 0x47}) // BIT 0,A
	c.A = 0x28
	mustStep(t, c)
	if !c.F.Zero() || !c.F.Has(FlagY) || !c.F.Has(FlagX) {
		t.Fatalf("BIT 0,A with A=28 flags got %s", c.F)
	}
}

func TestCPU_IndexedLoads(t *testing.T) {
	// LD IX,0x3000; LD (IX+5),0x77; LD A,(IX+5); LD IY,0x3010; LD (IY-1),A
	prog := []byte{
		0xDD, 0x21, 0x00, 0x30,
		0xDD, 0x36, 0x05, 0x77,
		0xDD, 0x7E, 0x05,
		0xFD, 0x21, 0x10, 0x30,
		0xFD, 0x77, 0xFF,
	}
	c := newCPUWithProgram(prog)
	want := []int{14, 19, 19, 14, 19}
	for i, w := range want {
		if got := mustStep(t, c); got != w {
			t.Fatalf("step %d cycles got %d want %d", i, got, w)
		}
	}
	if c.A != 0x77 {
		t.Fatalf("LD A,(IX+5) got %02x", c.A)
	}
	if got := c.Memory().Read(0x300F); got != 0x77 {
		t.Fatalf("LD (IY-1),A wrote %02x", got)
	}
	if c.PC != uint16(len(prog)) {
		t.Fatalf("PC got %04x want %04x", c.PC, len(prog))
	}
}

func TestCPU_IndexHalves(t *testing.T) {
	// LD IXH,0x12; LD IXL,0x34; LD A,IXH; ADD A,IXL; LD H,(IX+0)
	prog := []byte{0xDD, 0x26, 0x12, 0xDD, 0x2E, 0x34, 0xDD, 0x7C, 0xDD, 0x85, 0xDD, 0x66, 0x00}
	c := newCPUWithProgram(prog)
	c.Memory().Write(0x1234, 0x99)
	for i := 0; i < 5; i++ {
		mustStep(t, c)
	}
	if c.IX != 0x1234 {
		t.Fatalf("IX got %04x want 1234", c.IX)
	}
	if c.A != 0x46 {
		t.Fatalf("A got %02x want 46", c.A)
	}
	if c.H != 0x99 {
		t.Fatalf("LD H,(IX+0) got %02x want 99 (must load H, not IXH)", c.H)
	}
}

func TestCPU_IndexArithmetic(t *testing.T) {
	// ADD IX,BC; INC (IX+1); PUSH IX; POP HL; JP (IX)
	prog := []byte{0xDD, 0x09, 0xDD, 0x34, 0x01, 0xDD, 0xE5, 0xE1, 0xDD, 0xE9}
	c := newCPUWithProgram(prog)
	c.IX = 0x1000
	c.SetBC(0x0F00)
	c.SP = 0x8000
	want := []int{15, 23, 15, 10, 8}
	for i, w := range want {
		if got := mustStep(t, c); got != w {
			t.Fatalf("step %d cycles got %d want %d", i, got, w)
		}
	}
	if c.Memory().Read(0x1F01) != 1 {
		t.Fatalf("INC (IX+1) missed")
	}
	if c.HL() != 0x1F00 {
		t.Fatalf("POP HL got %04x", c.HL())
	}
	if c.PC != 0x1F00 {
		t.Fatalf("JP (IX) got %04x", c.PC)
	}
}

func TestCPU_IndexBitOps(t *testing.T) {
	// RLC (IX+5); BIT 0,(IX+5); SET 7,(IY-2),B
	prog := []byte{0xDD, 0xCB, 0x05, 0x06, 0xDD, 0xCB, 0x05, 0x46, 0xFD, 0xCB, 0xFE, 0xF8}
	c := newCPUWithProgram(prog)
	c.IX = 0x2000
	c.IY = 0x3002
	c.Memory().Write(0x2005, 0x81)
	if cycles := mustStep(t, c); cycles != 4+4+15 {
		t.Fatalf("RLC (IX+d) cycles got %d want 23", cycles)
	}
	if got := c.Memory().Read(0x2005); got != 0x03 || !c.F.Carry() {
		t.Fatalf("RLC (IX+5) got %02x F=%s", got, c.F)
	}
	if cycles := mustStep(t, c); cycles != 20 {
		t.Fatalf("BIT (IX+d) cycles got %d want 20", cycles)
	}
	if c.F.Zero() {
		t.Fatalf("BIT 0 of 03 reported zero")
	}
	mustStep(t, c)
	if c.Memory().Read(0x3000) != 0x80 || c.B != 0x80 {
		t.Fatalf("SET 7,(IY-2),B got mem %02x B %02x", c.Memory().Read(0x3000), c.B)
	}
	if c.PC != 12 {
		t.Fatalf("PC got %04x want 000C", c.PC)
	}
}

func TestCPU_IgnoredAndSupersededPrefix(t *testing.T) {
	// DD NOP; DD LD A,n; DD FD LD IY,nn
	prog := []byte{0xDD, 0x00, 0xDD, 0x3E, 0x11, 0xDD, 0xFD, 0x21, 0x34, 0x12}
	c := newCPUWithProgram(prog)
	if cycles := mustStep(t, c); cycles != 8 || c.PC != 2 {
		t.Fatalf("DD NOP: cycles %d PC %04x", cycles, c.PC)
	}
	if cycles := mustStep(t, c); cycles != 11 || c.PC != 5 || c.A != 0x11 {
		t.Fatalf("DD LD A,n: cycles %d PC %04x A %02x", cycles, c.PC, c.A)
	}
	if cycles := mustStep(t, c); cycles != 18 || c.PC != 10 {
		t.Fatalf("DD FD LD IY,nn: cycles %d PC %04x", cycles, c.PC)
	}
	if c.IY != 0x1234 || c.IX != 0 {
		t.Fatalf("IX/IY got %04x/%04x", c.IX, c.IY)
	}
}

func TestCPU_AccumulatorRotatesKeepSZP(t *testing.T) {
	c := newCPUWithProgram([]byte{0x07}) // RLCA
	c.A = 0x80
	c.F = FlagS | FlagZ | FlagPV | FlagH | FlagN
	mustStep(t, c)
	if c.A != 0x01 || !c.F.Carry() {
		t.Fatalf("RLCA got %02x F=%s", c.A, c.F)
	}
	if !c.F.Sign() || !c.F.Zero() || !c.F.Parity() || c.F.Half() || c.F.Subtract() {
		t.Fatalf("RLCA flag preservation got %s", c.F)
	}
}

func TestCPU_CPUsesOperandForXY(t *testing.T) {
	c := newCPUWithProgram([]byte{0xFE, 0x28}) // CP 0x28
	c.A = 0x00
	mustStep(t, c)
	if c.A != 0 {
		t.Fatalf("CP changed A")
	}
	if !c.F.Has(FlagY) || !c.F.Has(FlagX) || !c.F.Carry() || !c.F.Subtract() {
		t.Fatalf("CP flags got %s", c.F)
	}
}

func TestCPU_SaveLoadState(t *testing.T) {
	c := newCPUWithProgram([]byte{0x3E, 0x42, 0x00})
	c.ScheduleIn(event.Timer, 100)
	mustStep(t, c)
	data := c.SaveState()
	mustStep(t, c)
	if err := c.LoadState(data); err != nil {
		t.Fatalf("load state: %v", err)
	}
	if c.PC != 2 || c.A != 0x42 || c.Cycles() != 7 {
		t.Fatalf("restored PC=%04x A=%02x cycles=%d", c.PC, c.A, c.Cycles())
	}
	if c.Events().Len() != 1 {
		t.Fatalf("restored event queue len %d want 1", c.Events().Len())
	}
}

func TestRegisters_PairByName(t *testing.T) {
	var r Registers
	for _, name := range []string{"AF", "BC", "DE", "HL", "AF'", "BC'", "DE'", "HL'", "IX", "IY", "SP", "PC"} {
		if !r.SetPair(name, 0xBEEF) {
			t.Fatalf("SetPair(%s) rejected", name)
		}
		if v, ok := r.Pair(name); !ok || v != 0xBEEF {
			t.Fatalf("Pair(%s) got %04x %v", name, v, ok)
		}
	}
	if !r.SetReg8("IXL", 0x01) || r.IX != 0xBE01 {
		t.Fatalf("SetReg8(IXL) got IX=%04x", r.IX)
	}
	if _, ok := r.Pair("XY"); ok {
		t.Fatalf("unknown pair accepted")
	}
}

func TestCPU_LoadProgramLeavesHalt(t *testing.T) {
	c := New(bus.New())
	if err := c.LoadProgram(0x0100, []byte{0x76}); err != nil {
		t.Fatal(err)
	}
	mustStep(t, c)
	if !c.Halted() {
		t.Fatalf("first program did not halt")
	}
	c.RequestNMI()
	c.RequestInterrupt()

	// LD A,42H; HALT
	if err := c.LoadProgram(0x0200, []byte{0x3E, 0x42, 0x76}); err != nil {
		t.Fatal(err)
	}
	if c.Halted() || c.PC != 0x0200 {
		t.Fatalf("after load halted=%v PC=%04x", c.Halted(), c.PC)
	}
	if cycles := mustStep(t, c); cycles != 7 {
		t.Fatalf("first step got %d T-states want 7 (stale NMI serviced?)", cycles)
	}
	if c.A != 0x42 || c.PC != 0x0202 {
		t.Fatalf("second program got A=%02x PC=%04x want 42/0202", c.A, c.PC)
	}
}
