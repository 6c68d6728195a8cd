package ftpcore

// Config is the session's immutable configuration. Zero-valued fields are
// defaulted by normalize rather than rejected outright.
type Config struct {
	// User and Password are compared by exact equality (constant-time,
	// see auth.go). Non-goal: multi-user accounting - this is a single
	// configured credential, not a user store.
	User     string
	Password []byte

	// Banner is sent verbatim as the text of the initial 220.
	Banner string

	CommandMax  int
	ReplyMax    int
	TransferMax int
	ScratchMax  int

	// Idle timeouts in milliseconds; 0 disables the corresponding scope.
	// Compared against the now_ms passed to Tick.
	ControlIdleMS  int64
	PasvIdleMS     int64
	TransferIdleMS int64

	Logger Logger
}

// DefaultConfig returns a Config with every buffer size at its minimum,
// no timeouts, and a NopLogger. Callers still must set User/Password.
func DefaultConfig() Config {
	return Config{
		Banner:      "FTP Server Ready",
		CommandMax:  MinCommandBuf,
		ReplyMax:    MinReplyBuf,
		TransferMax: MinTransferBuf,
		ScratchMax:  MinScratchBuf,
		Logger:      NopLogger{},
	}
}

// normalize fills in any zero-valued field with its documented default.
func (c Config) normalize() Config {
	if c.CommandMax == 0 {
		c.CommandMax = MinCommandBuf
	}
	if c.ReplyMax == 0 {
		c.ReplyMax = MinReplyBuf
	}
	if c.TransferMax == 0 {
		c.TransferMax = MinTransferBuf
	}
	if c.ScratchMax == 0 {
		c.ScratchMax = MinScratchBuf
	}
	if c.Banner == "" {
		c.Banner = "FTP Server Ready"
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	return c
}
