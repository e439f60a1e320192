package session

// outcome classifies how a wait for a client message or a coordinator
// command resolved.
type outcome int

const (
	// outcomeOK means the expected message/command arrived and passed
	// validation.
	outcomeOK outcome = iota
	// outcomeTimeout means the deadline elapsed with nothing valid seen.
	outcomeTimeout
	// outcomeClosed means the transport or command queue closed.
	outcomeClosed
	// outcomeInterrupted means a differently-actioned message or command,
	// recognized as an interrupter, arrived instead.
	outcomeInterrupted
)
