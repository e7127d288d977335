// Package emuerr defines the error kinds surfaced by the emulator core.
package emuerr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is.
var (
	ErrInvalidOpcode = errors.New("invalid opcode")
	ErrMemory        = errors.New("memory access out of range")
	ErrSystem        = errors.New("system error")
	ErrEvent         = errors.New("event error")
)

// InvalidOpcodeError reports a byte with no table entry under the active prefix.
type InvalidOpcodeError struct {
	Prefix string // decoder prefix state when the byte was seen
	Opcode byte
	PC     uint16 // address of the first byte of the instruction
}

func (e *InvalidOpcodeError) Error() string {
	if e.Prefix == "" || e.Prefix == "none" {
		return fmt.Sprintf("invalid opcode %02X at %04X", e.Opcode, e.PC)
	}
	return fmt.Sprintf("invalid opcode %02X after %s prefix at %04X", e.Opcode, e.Prefix, e.PC)
}

func (e *InvalidOpcodeError) Is(target error) bool { return target == ErrInvalidOpcode }

// MemoryError reports an access or bulk load that does not fit in the address space.
type MemoryError struct {
	Addr uint16
	Len  int
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory range %04X+%d exceeds address space", e.Addr, e.Len)
}

func (e *MemoryError) Is(target error) bool { return target == ErrMemory }

// SystemError is an unrecoverable inconsistency inside the machine.
type SystemError struct {
	Msg string
}

func (e *SystemError) Error() string { return "system: " + e.Msg }

func (e *SystemError) Is(target error) bool { return target == ErrSystem }

// EventError is raised by event delivery, usually wrapping a handler failure.
type EventError struct {
	Kind string
	Err  error
}

func (e *EventError) Error() string {
	if e.Err == nil {
		return "event " + e.Kind
	}
	return fmt.Sprintf("event %s: %v", e.Kind, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

func (e *EventError) Is(target error) bool { return target == ErrEvent }
