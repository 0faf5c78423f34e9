package cpu

// exceptionKind enumerates the seven ARM7TDMI exceptions.
type exceptionKind int

const (
	excReset exceptionKind = iota
	excDataAbort
	excFIQ
	excIRQ
	excPrefetchAbort
	excSWI
	excUndefinedInstr
)

// Lower number wins: Reset preempts everything, UndefinedInstruction is
// serviced only when nothing else is pending.
var exceptionPriority = [...]int{
	excReset:            1,
	excDataAbort:        2,
	excFIQ:              3,
	excIRQ:              4,
	excPrefetchAbort:    5,
	excSWI:              6,
	excUndefinedInstr:   7,
}

const (
	vectorReset          = 0x00
	vectorUndefinedInstr = 0x04
	vectorSWI            = 0x08
	vectorPrefetchAbort  = 0x0C
	vectorDataAbort      = 0x10
	vectorIRQ            = 0x18
	vectorFIQ            = 0x1C
)

// signalException arms kind for the next instruction boundary, unless a
// higher-priority exception is already armed for that same boundary.
func (c *CPU) signalException(kind exceptionKind) {
	pri := exceptionPriority[kind]
	if !c.exceptionPending || pri < c.exceptionPriority {
		c.exceptionPending = true
		c.exceptionPriority = pri
		k := kind
		c.exceptionHandler = func() { c.handleException(k) }
	}
}

// handleException performs the common entry sequence — save return
// address and CPSR to the target mode's banked r14/SPSR, mask interrupts,
// switch to ARM state and the target mode, load PC from the vector table,
// and flush the pipeline — with each exception differing only in which
// mode/vector/mask it uses.
func (c *CPU) handleException(kind exceptionKind) {
	lrOffset := uint32(4)
	if c.thumbState() {
		lrOffset = 2
	}
	retAddr := c.r[15] - lrOffset
	savedCPSR := c.cpsr

	var targetMode Mode
	var vector uint32
	maskFIQ := false

	switch kind {
	case excReset:
		targetMode, vector, maskFIQ = ModeSupervisor, vectorReset, true
	case excDataAbort:
		targetMode, vector = ModeAbort, vectorDataAbort
	case excFIQ:
		targetMode, vector, maskFIQ = ModeFIQ, vectorFIQ, true
	case excIRQ:
		targetMode, vector = ModeIRQ, vectorIRQ
	case excPrefetchAbort:
		targetMode, vector = ModeAbort, vectorPrefetchAbort
	case excSWI:
		targetMode, vector = ModeSupervisor, vectorSWI
	case excUndefinedInstr:
		targetMode, vector = ModeUndefined, vectorUndefinedInstr
	}

	// Switch banks before writing LR/SPSR: if targetMode is already the
	// live mode (a nested exception), the target's r14/SPSR are sitting
	// in the live registers, not yet copied into the bank's storage
	// fields — writing the storage field first and switching mode after
	// would let setMode's own store-old-bank step clobber it.
	c.cpsr &^= 1 << bitT // ARM state
	c.setFlagI(true)
	if maskFIQ {
		c.setFlagF(true)
	}
	c.setMode(targetMode)

	c.r[14] = retAddr
	c.spsr = savedCPSR
	c.r[15] = vector
	c.flushPipeline()
}
