package cpu

// EI and DI act immediately. The EI instruction additionally defers
// acceptance by one instruction.
func (c *CPU) EI() { c.IFF1, c.IFF2 = true, true }

func (c *CPU) DI() { c.IFF1, c.IFF2 = false, false }

func (c *CPU) SetInterruptMode(mode byte) { c.IM = mode & 3 }

// SetInterruptVector sets the byte a mode 2 device places on the data bus.
func (c *CPU) SetInterruptVector(v byte) { c.irqVector = v }

// RequestInterrupt asserts the maskable interrupt line. It stays asserted
// until the CPU accepts it or ClearInterrupt is called.
func (c *CPU) RequestInterrupt() { c.intLine = true }

func (c *CPU) ClearInterrupt() { c.intLine = false }

// RequestNMI latches a non-maskable interrupt for the next instruction boundary.
func (c *CPU) RequestNMI() { c.nmiPending = true }

// InterruptPending reports whether the maskable line is asserted.
func (c *CPU) InterruptPending() bool { return c.intLine }

func (c *CPU) NMIPending() bool { return c.nmiPending }

// Stuck reports a HALT that nothing already queued can end.
func (c *CPU) Stuck() bool {
	return c.halted && !c.IFF1 && !c.nmiPending && c.events.Empty()
}

// leaveHalt resumes after the HALT opcode.
func (c *CPU) leaveHalt() {
	if c.halted {
		c.halted = false
		c.PC++
	}
}

// HandleNMI accepts a non-maskable interrupt now.
func (c *CPU) HandleNMI() {
	c.leaveHalt()
	c.IFF2 = c.IFF1
	c.IFF1 = false
	c.IncrementR()
	c.push16(c.PC)
	c.PC = NMIVector
	c.cycles += 11
}

// HandleInterrupt accepts a maskable interrupt now if IFF1 allows it.
// Mode 0 is treated as RST 38H, like mode 1.
func (c *CPU) HandleInterrupt() bool {
	if !c.IFF1 {
		return false
	}
	c.leaveHalt()
	c.IFF1, c.IFF2 = false, false
	c.IncrementR()
	c.push16(c.PC)
	if c.IM == 2 {
		c.PC = c.read16(uint16(c.I)<<8 | uint16(c.irqVector))
		c.cycles += 19
		return true
	}
	c.PC = IntVector
	c.cycles += 13
	return true
}

// serviceInterrupts runs at an instruction boundary. NMI wins over INT.
func (c *CPU) serviceInterrupts() bool {
	if c.nmiPending {
		c.nmiPending = false
		c.eiDelay = false
		c.HandleNMI()
		return true
	}
	if c.eiDelay {
		c.eiDelay = false
		return false
	}
	if c.intLine && c.HandleInterrupt() {
		c.intLine = false
		return true
	}
	return false
}
