package ftpcore

import (
	"fmt"
	"time"

	ftpauth "ftpcore/auth"
	"ftpcore/internal/teardown"
)

// Server is the tick-driven protocol engine. It owns
// exactly one Session at a time and never starts a goroutine; every call
// into net/fs must be non-blocking, and the caller is responsible for
// calling Tick repeatedly (a select loop, a timer - anything).
type Server struct {
	cfg     Config
	net     Net
	fs      Fs
	storage Storage
	scratch []byte

	auth *ftpauth.Service

	controlBindHint string
	controlConn     Conn
	line            *LineReader
	reply           *ReplyWriter
	sess            *Session
}

// New builds a Server. storage must satisfy Storage.Validate; bindHint is
// passed through to Net.PasvListen as the optional local control address.
func New(cfg Config, net Net, fs Fs, storage Storage, bindHint string) (*Server, error) {
	cfg = cfg.normalize()
	if err := storage.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:             cfg,
		net:             net,
		fs:              fs,
		storage:         storage,
		scratch:         storage.Scratch,
		auth:            ftpauth.NewService(cfg.User, cfg.Password),
		controlBindHint: bindHint,
		line:            NewLineReader(storage.Command),
		reply:           NewReplyWriter(storage.Reply),
	}, nil
}

// Active reports whether a control session is currently live.
func (srv *Server) Active() bool { return srv.sess != nil }

// Close tears down the active session, if any, releasing every resource it
// holds. Idempotent.
func (srv *Server) Close() error {
	if srv.sess == nil {
		return nil
	}
	return srv.teardownSession()
}

// Tick performs one bounded unit of work: at most one
// control-accept attempt, one reply flush, one PASV-accept attempt, one
// step of each active transfer, and - only if nothing is pending - one
// command line read and dispatch. now is a monotonically non-decreasing
// millisecond counter used only for timeout decisions.
func (srv *Server) Tick(now int64) error {
	if err := srv.acceptOrRejectControl(now); err != nil {
		return err
	}
	if srv.sess == nil {
		return nil
	}

	if srv.checkTimeouts(now) {
		return nil
	}

	sess := srv.sess
	if _, err := srv.reply.Flush(srv.controlConn); err != nil {
		srv.teardownSessionLogged("control flush failed: %v", err)
		return nil
	}

	if sess.Auth == AuthClosing && !srv.reply.Pending() {
		srv.teardownSessionLogged("client quit")
		return nil
	}

	if err := srv.pollPasvAccept(sess, now); err != nil {
		return err
	}
	if err := srv.driveLIST(sess, now); err != nil {
		return err
	}
	if err := srv.driveRETR(sess, now); err != nil {
		return err
	}
	if err := srv.driveSTOR(sess, now); err != nil {
		return err
	}

	if srv.reply.Pending() || sess.anyTransferActive() {
		return nil
	}

	ev, err := srv.line.Poll(srv.controlConn)
	if err != nil {
		srv.teardownSessionLogged("control read failed: %v", err)
		return nil
	}
	switch ev.Kind {
	case LineNone:
		return nil
	case LineTooLong:
		return srv.reply.QueueSingle(500, "Line too long")
	case LineOK:
		sess.lastControlActivity = now
		cmd := ParseCommand(ev.Line)
		return srv.dispatch(sess, cmd, now)
	}
	return nil
}

// acceptOrRejectControl performs the one control-accept attempt this tick
// is allowed. A second connection arriving while a session is
// live is rejected best-effort with 421 and closed, never disturbing the
// active session.
func (srv *Server) acceptOrRejectControl(now int64) error {
	conn, err := srv.net.AcceptControl()
	if err != nil {
		if isWouldBlock(err) {
			return nil
		}
		return nil
	}

	if srv.sess != nil {
		_, _ = conn.Write([]byte("421 Too many users\r\n"))
		_ = conn.Close()
		return nil
	}

	srv.controlConn = conn
	srv.sess = NewSession(make([]byte, PathMax))
	srv.sess.lastControlActivity = now
	srv.line.Reset()
	srv.reply.Reset()
	return srv.reply.QueueSingle(220, srv.cfg.Banner)
}

// checkTimeouts applies the three optional idle timeouts.
// Returns true if the session was torn down this tick (control timeout),
// in which case the caller must not touch sess further.
func (srv *Server) checkTimeouts(now int64) bool {
	sess := srv.sess
	if srv.cfg.ControlIdleMS > 0 && sess.lastControlActivity > 0 &&
		now-sess.lastControlActivity > srv.cfg.ControlIdleMS {
		srv.teardownSessionLogged("control idle timeout")
		return true
	}
	if srv.cfg.PasvIdleMS > 0 && sess.pasv == PasvListening && sess.lastPasvActivity > 0 &&
		now-sess.lastPasvActivity > srv.cfg.PasvIdleMS {
		if sess.anyTransferActive() {
			_ = srv.reply.QueueSingle(425, "Passive connection timed out")
			srv.abortAllTransfers(sess)
		} else {
			srv.closePasvResources(sess)
		}
	}
	if srv.cfg.TransferIdleMS > 0 && sess.anyTransferActive() && sess.lastTransferActivity > 0 &&
		now-sess.lastTransferActivity > srv.cfg.TransferIdleMS {
		_ = srv.reply.QueueSingle(426, "Transfer timed out")
		srv.abortAllTransfers(sess)
	}
	return false
}

func (srv *Server) abortAllTransfers(sess *Session) {
	if !sess.list.idle() {
		srv.abortLIST(sess)
	}
	if !sess.retr.idle() {
		srv.abortRETR(sess)
	}
	if !sess.stor.idle() {
		srv.abortSTOR(sess)
	}
}

// teardownSession releases every resource the active session holds and
// clears it, for control-close.
func (srv *Server) teardownSession() error {
	sess := srv.sess
	if sess == nil {
		return nil
	}
	closers := []teardown.Closer{}
	if !sess.list.idle() {
		closers = append(closers, sess.list.iter)
	}
	if !sess.retr.idle() {
		closers = append(closers, sess.retr.file)
	}
	if !sess.stor.idle() {
		closers = append(closers, sess.stor.file)
	}
	closers = append(closers, asCloser(sess.dataConn), asCloser(sess.pasvListener), asCloser(srv.controlConn))
	err := teardown.CloseAll(closers...)
	srv.sess = nil
	srv.controlConn = nil
	return err
}

func (srv *Server) teardownSessionLogged(format string, args ...interface{}) {
	if err := srv.teardownSession(); err != nil {
		logTag(srv.scratch, srv.cfg.Logger, LevelWarn, "TEARDOWN", "%s (plus: %v)", fmt.Sprintf(format, args...), err)
		return
	}
	logTag(srv.scratch, srv.cfg.Logger, LevelInfo, "TEARDOWN", format, args...)
}

// replyFsError maps an Fs-originated error through the Fs-error table and
// queues the corresponding reply.
func (srv *Server) replyFsError(err error) error {
	code, text := fsErrorReply(KindFromError(err))
	return srv.reply.QueueSingle(code, text)
}

func requireArg(arg []byte) (string, bool) {
	if len(arg) == 0 {
		return "", false
	}
	return string(arg), true
}

// dispatch routes one parsed command through the auth state machine
// and, once authed, the path/transfer command set.
func (srv *Server) dispatch(sess *Session, cmd Command, now int64) error {
	if cmd.Verb == VerbQUIT {
		sess.Auth = AuthClosing
		return srv.reply.QueueSingle(221, "Bye")
	}

	switch sess.Auth {
	case AuthNeedUser:
		return srv.dispatchNeedUser(sess, cmd)
	case AuthNeedPass:
		return srv.dispatchNeedPass(sess, cmd)
	case AuthAuthed:
		return srv.dispatchAuthed(sess, cmd, now)
	default: // AuthClosing
		return nil
	}
}

func (srv *Server) dispatchNeedUser(sess *Session, cmd Command) error {
	if cmd.Verb != VerbUSER {
		return srv.reply.QueueSingle(530, "Please login with USER and PASS")
	}
	name, ok := requireArg(cmd.Arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if !srv.auth.UserMatches(name) {
		return srv.reply.QueueSingle(530, "Not logged in")
	}
	sess.user = name
	sess.Auth = AuthNeedPass
	return srv.reply.QueueSingle(331, "User name okay, need password")
}

func (srv *Server) dispatchNeedPass(sess *Session, cmd Command) error {
	switch cmd.Verb {
	case VerbUSER:
		name, ok := requireArg(cmd.Arg)
		if !ok {
			return srv.reply.QueueSingle(501, "Syntax error in parameters")
		}
		if !srv.auth.UserMatches(name) {
			sess.Auth = AuthNeedUser
			return srv.reply.QueueSingle(530, "Not logged in")
		}
		sess.user = name
		return srv.reply.QueueSingle(331, "User name okay, need password")
	case VerbPASS:
		pass, ok := requireArg(cmd.Arg)
		if !ok {
			return srv.reply.QueueSingle(501, "Syntax error in parameters")
		}
		result := srv.auth.Authenticate(sess.user, pass)
		if !result.OK {
			sess.Auth = AuthNeedUser
			return srv.reply.QueueSingle(530, "Login incorrect")
		}
		cwd, err := srv.fs.CwdInit()
		if err != nil {
			sess.Auth = AuthNeedUser
			return srv.replyFsError(err)
		}
		sess.cwd = cwd
		sess.cwdReady = true
		sess.Auth = AuthAuthed
		logTag(srv.scratch, srv.cfg.Logger, LevelInfo, "AUTH", "user %q logged in", sess.user)
		return srv.reply.QueueSingle(230, "User logged in")
	default:
		return srv.reply.QueueSingle(530, "Please login with USER and PASS")
	}
}

func (srv *Server) dispatchAuthed(sess *Session, cmd Command, now int64) error {
	if sess.renamePending() && cmd.Verb != VerbRNTO {
		return srv.reply.QueueSingle(503, "Bad sequence of commands")
	}

	switch cmd.Verb {
	case VerbNOOP:
		return srv.reply.QueueSingle(200, "OK")
	case VerbSYST:
		return srv.reply.QueueSingle(215, "UNIX Type: L8")
	case VerbTYPE:
		return srv.handleTYPE(sess, cmd.Arg)
	case VerbFEAT:
		return srv.reply.QueueFeat(FeatureList(srv.fs.Capabilities()))
	case VerbPASV:
		return srv.handlePASV(sess, now)
	case VerbLIST:
		return srv.handleTransferStart(sess, cmd.Arg, srv.startLIST)
	case VerbRETR:
		return srv.handleTransferStart(sess, cmd.Arg, srv.startRETR)
	case VerbSTOR:
		return srv.handleTransferStart(sess, cmd.Arg, srv.startSTOR)
	case VerbPWD:
		return srv.handlePWD(sess)
	case VerbCWD:
		return srv.handleCWD(sess, cmd.Arg)
	case VerbCDUP:
		return srv.handleCDUP(sess)
	case VerbDELE:
		return srv.handleDELE(cmd.Arg)
	case VerbRNFR:
		return srv.handleRNFR(sess, cmd.Arg)
	case VerbRNTO:
		return srv.handleRNTO(sess, cmd.Arg)
	case VerbMKD:
		return srv.handleMKD(cmd.Arg)
	case VerbRMD:
		return srv.handleRMD(cmd.Arg)
	case VerbSIZE:
		return srv.handleSIZE(cmd.Arg)
	case VerbMDTM:
		return srv.handleMDTM(cmd.Arg)
	default:
		return srv.reply.QueueSingle(502, "Command not implemented")
	}
}

func (srv *Server) handleTYPE(sess *Session, arg []byte) error {
	switch toUpperASCII(trimSpace(arg)) {
	case "I":
		sess.Binary = true
		return srv.reply.QueueSingle(200, "Type set to I")
	case "A":
		// Lenient: accepted for client compatibility, transfers remain binary.
		return srv.reply.QueueSingle(200, "Type set to A")
	default:
		return srv.reply.QueueSingle(504, "Command not implemented for that parameter")
	}
}

// handleTransferStart implements the shared LIST/RETR/STOR gate: authed
// is already guaranteed by dispatchAuthed; PASV must not be idle, and
// opening the stream must succeed before any 150 is queued.
func (srv *Server) handleTransferStart(sess *Session, arg []byte, open func(*Session, string) error) error {
	if sess.pasv == PasvIdle {
		return srv.reply.QueueSingle(425, "Use PASV first")
	}
	return open(sess, string(arg))
}

func (srv *Server) handlePWD(sess *Session) error {
	buf, err := sess.cwd.Pwd(srv.scratch)
	if err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(257, fmt.Sprintf(`"%s"`, string(buf)))
}

func (srv *Server) handleCWD(sess *Session, arg []byte) error {
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if err := sess.cwd.Change(path); err != nil {
		return srv.replyFsError(err)
	}
	logTag(srv.scratch, srv.cfg.Logger, LevelInfo, "DIR", "changed directory to %q", path)
	return srv.reply.QueueSingle(250, "Requested file action okay, completed")
}

func (srv *Server) handleCDUP(sess *Session) error {
	if err := sess.cwd.Up(); err != nil {
		return srv.replyFsError(err)
	}
	logTag(srv.scratch, srv.cfg.Logger, LevelInfo, "DIR", "changed directory to parent")
	return srv.reply.QueueSingle(250, "Requested file action okay, completed")
}

func (srv *Server) handleDELE(arg []byte) error {
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if err := srv.fs.Delete(path); err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(250, "Requested file action okay, completed")
}

func (srv *Server) handleRNFR(sess *Session, arg []byte) error {
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if err := sess.setRenameFrom([]byte(path)); err != nil {
		return srv.reply.QueueSingle(553, "Requested action not taken. File name not allowed")
	}
	return srv.reply.QueueSingle(350, "Requested file action pending further information")
}

func (srv *Server) handleRNTO(sess *Session, arg []byte) error {
	if !sess.renamePending() {
		return srv.reply.QueueSingle(503, "Bad sequence of commands")
	}
	path, ok := requireArg(arg)
	if !ok {
		// Syntax error is not a sequencing error: preserve the pending
		// rename for a subsequent RNTO.
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	from := sess.renameFromPath()
	err := srv.fs.Rename(from, path)
	sess.clearRenameFrom()
	if err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(250, "Requested file action okay, completed")
}

func (srv *Server) handleMKD(arg []byte) error {
	if !srv.fs.Capabilities().MakeDir {
		return srv.reply.QueueSingle(502, "Command not implemented")
	}
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if err := srv.fs.MakeDir(path); err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(257, fmt.Sprintf(`"%s"`, path))
}

func (srv *Server) handleRMD(arg []byte) error {
	if !srv.fs.Capabilities().RemoveDir {
		return srv.reply.QueueSingle(502, "Command not implemented")
	}
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	if err := srv.fs.RemoveDir(path); err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(250, "Requested file action okay, completed")
}

func (srv *Server) handleSIZE(arg []byte) error {
	if !srv.fs.Capabilities().FileSize {
		return srv.reply.QueueSingle(502, "Command not implemented")
	}
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	size, err := srv.fs.FileSize(path)
	if err != nil {
		return srv.replyFsError(err)
	}
	return srv.reply.QueueSingle(213, fmt.Sprintf("%d", size))
}

func (srv *Server) handleMDTM(arg []byte) error {
	if !srv.fs.Capabilities().FileMtime {
		return srv.reply.QueueSingle(502, "Command not implemented")
	}
	path, ok := requireArg(arg)
	if !ok {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	secs, err := srv.fs.FileMtime(path)
	if err != nil {
		return srv.replyFsError(err)
	}
	if secs < 0 {
		return srv.reply.QueueSingle(451, "Requested action aborted: local error in processing")
	}
	t := time.Unix(secs, 0).UTC()
	return srv.reply.QueueSingle(213, t.Format("20060102150405"))
}
