package ftpcore

// Net is the transport capability the engine consumes, expressed as a Go
// interface set - static dispatch via a concrete type satisfying these
// interfaces is expected, isolating the engine from any one transport's
// concrete types.
//
// Every method must be non-blocking: an operation that cannot complete
// immediately returns an error satisfying errors.Is(err,
// ftpcore.KindOf(ftpcore.KindWouldBlock)). A concrete implementation is an
// external collaborator and is not shipped here; see ftpcoretest for
// scripted doubles used by this module's own tests.
type Net interface {
	// AcceptControl performs one non-blocking accept attempt on the
	// control listener. Returns KindWouldBlock if nothing is waiting.
	AcceptControl() (Conn, error)

	// PasvListen opens a passive-mode listener. bindHint, when non-empty,
	// is the local address of the control connection (for backends that
	// bind PASV listeners on the same interface); it may be ignored.
	PasvListen(bindHint string) (Listener, error)

	// AcceptData performs one non-blocking accept attempt on l. Returns
	// KindWouldBlock if nothing is waiting.
	AcceptData(l Listener) (Conn, error)

	// FormatPasvAddress renders a listener's local address as the
	// "h1,h2,h3,h4,p1,p2" ASCII tuple required for the 227 reply
	// (p1 = port/256, p2 = port%256). IPv4 only.
	FormatPasvAddress(l Listener) (string, error)
}

// Conn is a non-blocking, caller-buffered byte connection - a control
// connection or a data connection.
type Conn interface {
	// Read reads into p, returning n > 0 on partial progress. A read that
	// can't proceed without waiting returns (0, KindWouldBlock). A zero
	// length read that isn't KindWouldBlock is KindClosed.
	Read(p []byte) (n int, err error)

	// Write writes from p, returning n > 0 on partial progress. Short
	// writes are normal and must be resumed by the caller. A write that
	// can't proceed without waiting returns (0, KindWouldBlock). A zero
	// length, non-blocking write attempt that makes no progress is
	// KindClosed.
	Write(p []byte) (n int, err error)

	// Close is idempotent.
	Close() error
}

// Listener is a passive-mode data listener.
type Listener interface {
	Close() error
}
