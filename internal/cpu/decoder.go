package cpu

import "github.com/FabianRolfMatthiasNoll/z80emu/internal/emuerr"

// Prefix is the decoder's position inside a multi-byte opcode.
type Prefix int

const (
	PrefixNone Prefix = iota
	PrefixCB
	PrefixDD
	PrefixFD
	PrefixED
	PrefixDDCB
	PrefixFDCB
)

var prefixNames = [...]string{"none", "CB", "DD", "FD", "ED", "DDCB", "FDCB"}

func (p Prefix) String() string {
	if int(p) < len(prefixNames) {
		return prefixNames[p]
	}
	return "invalid"
}

type transition struct {
	from Prefix
	b    byte
}

// prefixTransitions is the whole automaton. DD or FD followed by another
// DD, FD or ED is superseded by the later prefix.
var prefixTransitions = map[transition]Prefix{
	{PrefixNone, 0xCB}: PrefixCB,
	{PrefixNone, 0xDD}: PrefixDD,
	{PrefixNone, 0xED}: PrefixED,
	{PrefixNone, 0xFD}: PrefixFD,
	{PrefixDD, 0xCB}:   PrefixDDCB,
	{PrefixFD, 0xCB}:   PrefixFDCB,
	{PrefixDD, 0xDD}:   PrefixDD,
	{PrefixDD, 0xFD}:   PrefixFD,
	{PrefixDD, 0xED}:   PrefixED,
	{PrefixFD, 0xDD}:   PrefixDD,
	{PrefixFD, 0xFD}:   PrefixFD,
	{PrefixFD, 0xED}:   PrefixED,
}

// Decoder consumes opcode bytes one at a time.
type Decoder struct {
	prefix     Prefix
	superseded int
}

func NewDecoder() *Decoder { return &Decoder{} }

// Prefix reports the pending prefix state.
func (d *Decoder) Prefix() Prefix { return d.prefix }

// Superseded is the number of DD/FD bytes of the last sequence that a later
// prefix overrode. They still occupy instruction bytes.
func (d *Decoder) Superseded() int { return d.superseded }

func (d *Decoder) Reset() {
	d.prefix = PrefixNone
	d.superseded = 0
}

// Decode feeds one byte. It returns done=false while a prefix is pending.
// For DD CB and FD CB the byte after the displacement is the one to feed.
// A byte with no table entry resets the decoder and returns an
// *emuerr.InvalidOpcodeError (PC left zero for the caller to fill).
func (d *Decoder) Decode(b byte) (*Instruction, bool, error) {
	if d.prefix == PrefixNone {
		d.superseded = 0
	}
	if next, ok := prefixTransitions[transition{d.prefix, b}]; ok {
		if d.prefix == PrefixDD || d.prefix == PrefixFD {
			if next != PrefixDDCB && next != PrefixFDCB {
				d.superseded++
			}
		}
		d.prefix = next
		return nil, false, nil
	}
	p := d.prefix
	d.prefix = PrefixNone
	ins := Lookup(p, b)
	if ins == nil {
		return nil, true, &emuerr.InvalidOpcodeError{Prefix: p.String(), Opcode: b}
	}
	return ins, true, nil
}
