package cpu

// Category groups instructions by what they do.
type Category int

const (
	Load Category = iota
	Arithmetic
	Logic
	Rotate
	BitManip
	Jump
	Call
	Return
	IO
	Control
	Exchange
	Block
	Special
)

var categoryNames = [...]string{
	Load:       "load",
	Arithmetic: "arithmetic",
	Logic:      "logic",
	Rotate:     "rotate",
	BitManip:   "bit",
	Jump:       "jump",
	Call:       "call",
	Return:     "return",
	IO:         "io",
	Control:    "control",
	Exchange:   "exchange",
	Block:      "block",
	Special:    "special",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Operand describes the immediate bytes that follow the opcode. It only
// drives disassembly; executors read their own operands.
type Operand int

const (
	OpNone  Operand = iota
	OpN             // 8-bit immediate
	OpNN            // 16-bit immediate, little endian
	OpDisp          // signed index displacement
	OpRel           // signed relative jump offset
	OpDispN         // displacement followed by an 8-bit immediate
)

// Instruction is an immutable, shared descriptor for one opcode under one
// prefix.
//
// Length counts every byte of the instruction, prefixes and displacement
// included. Cycles is the T-state cost after the prefix bytes, which the
// engine charges at 4 each as they are fetched; DD CB d op therefore costs
// 4 + 4 + Cycles. For conditional and repeating instructions Cycles is the
// not-taken or single-pass cost and Exec returns the surcharge.
type Instruction struct {
	Mnemonic string
	Length   int
	Cycles   int
	Category Category
	Operand  Operand
	Exec     func(c *CPU) int
}
