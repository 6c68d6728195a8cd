package ftpcore

// AuthPhase is the authentication state of a session.
type AuthPhase int

const (
	AuthNeedUser AuthPhase = iota
	AuthNeedPass
	AuthAuthed
	AuthClosing
)

// PasvPhase is the passive-mode lifecycle state of a session.
type PasvPhase int

const (
	PasvIdle PasvPhase = iota
	PasvListening
	PasvDataConnected
	PasvTransferring
	PasvClosing
)

// TransferPhase is shared by the LIST/RETR/STOR records.
type TransferPhase int

const (
	XferIdle TransferPhase = iota
	XferWaitingAccept
	XferStreaming
)

// listRecord is the LIST transfer record.
type listRecord struct {
	phase      TransferPhase
	iter       DirIter
	lineLen    int
	lineOffset int
	exhausted  bool
}

// retrRecord is the RETR transfer record.
type retrRecord struct {
	phase       TransferPhase
	file        FileReader
	chunkLen    int
	chunkOffset int
	eof         bool
}

// storRecord is the STOR transfer record.
type storRecord struct {
	phase       TransferPhase
	file        FileWriter
	chunkLen    int
	chunkOffset int
	eof         bool
}

func (l *listRecord) idle() bool { return l.phase == XferIdle }
func (r *retrRecord) idle() bool { return r.phase == XferIdle }
func (s *storRecord) idle() bool { return s.phase == XferIdle }

// Session is the per-connection state bound to the current control
// connection. Only the driver (server.go) mutates it.
type Session struct {
	Auth AuthPhase
	// Binary is always true in this MVP; TYPE A is accepted leniently
	// but never changes streaming behaviour.
	Binary bool

	cwd        Cwd
	cwdReady   bool
	user       string

	pasv         PasvPhase
	pasvListener Listener
	dataConn     Conn

	renameFrom    []byte
	renameFromLen int

	list listRecord
	retr retrRecord
	stor storRecord

	// last-activity timestamps per scope, for the optional idle timeouts.
	lastControlActivity  int64
	lastPasvActivity     int64
	lastTransferActivity int64
}

// NewSession returns a freshly reset session, as the driver creates on
// control accept.
func NewSession(renameBuf []byte) *Session {
	s := &Session{}
	s.renameFrom = renameBuf
	s.reset()
	return s
}

// reset restores every field to its initial value, as happens whenever
// the control connection closes.
func (s *Session) reset() {
	s.Auth = AuthNeedUser
	s.Binary = true
	s.cwd = nil
	s.cwdReady = false
	s.user = ""
	s.pasv = PasvIdle
	s.pasvListener = nil
	s.dataConn = nil
	s.renameFromLen = 0
	s.list = listRecord{}
	s.retr = retrRecord{}
	s.stor = storRecord{}
	s.lastControlActivity = 0
	s.lastPasvActivity = 0
	s.lastTransferActivity = 0
}

// anyTransferActive reports whether LIST, RETR or STOR is non-idle. At
// most one is ever true.
func (s *Session) anyTransferActive() bool {
	return !s.list.idle() || !s.retr.idle() || !s.stor.idle()
}

// renamePending reports whether an RNFR is awaiting its RNTO.
func (s *Session) renamePending() bool { return s.renameFromLen > 0 }

func (s *Session) setRenameFrom(path []byte) error {
	if len(path) > len(s.renameFrom) {
		return NewError("RNFR", KindInvalidPath, nil)
	}
	n := copy(s.renameFrom, path)
	s.renameFromLen = n
	return nil
}

func (s *Session) clearRenameFrom() { s.renameFromLen = 0 }

func (s *Session) renameFromPath() string {
	return string(s.renameFrom[:s.renameFromLen])
}
