package engine

// FaultOutcome mirrors faultOutcome for callers outside this package (the
// cgo interposition shim's signal trampoline needs to know whether to
// re-raise the signal with default disposition).
type FaultOutcome = faultOutcome

const (
	FaultUnrelated = faultUnrelated
	FaultServiced  = faultServiced
	FaultFatal     = faultFatal
)

// DefaultFaultOutcome runs the bootstrapped engine's fault handler against
// addr. It is the entry point the cgo SIGSEGV/SIGBUS trampoline calls with
// the faulting address from siginfo_t.si_addr (spec §4.4, SPEC_FULL.md
// §4.7a).
func DefaultFaultOutcome(addr uintptr) FaultOutcome {
	e, err := Bootstrap()
	if err != nil {
		return faultUnrelated
	}

	tid := currentThreadID()
	if e.guard.enter(tid) {
		// A fault raised while the guard is already set for this thread
		// would mean the fault handler itself faulted; nothing safe to do
		// but decline and let the default disposition apply.
		return faultUnrelated
	}
	defer e.guard.exit(tid)

	return e.fault.HandleFault(addr)
}
