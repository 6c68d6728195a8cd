package ftpcore

import (
	"fmt"

	"ftpcore/internal/teardown"
)

// handlePASV implements the PASV command: close any existing listener and
// data connection, open a fresh passive listener, and queue 227 with the
// formatted address tuple, or 425 on failure.
func (srv *Server) handlePASV(sess *Session, now int64) error {
	srv.closePasvResources(sess)

	l, err := srv.net.PasvListen(srv.controlBindHint)
	if err != nil {
		return srv.reply.QueueSingle(425, "Can't open data connection")
	}
	addr, err := srv.net.FormatPasvAddress(l)
	if err != nil {
		_ = l.Close()
		return srv.reply.QueueSingle(425, "Can't open data connection")
	}

	sess.pasvListener = l
	sess.pasv = PasvListening
	sess.lastPasvActivity = now
	return srv.reply.QueueSingle(227, fmt.Sprintf("Entering Passive Mode (%s)", addr))
}

// pollPasvAccept advances listening -> data-connected. Called once per
// tick regardless of which transfer, if any, is in flight.
func (srv *Server) pollPasvAccept(sess *Session, now int64) error {
	if sess.pasv != PasvListening {
		return nil
	}
	conn, err := srv.net.AcceptData(sess.pasvListener)
	if err != nil {
		if isWouldBlock(err) {
			return nil
		}
		// Listener itself died; treat like "PASV has ended" for any
		// waiting transfer, handled by the individual drive* functions
		// checking sess.pasv.
		sess.pasv = PasvIdle
		return nil
	}
	sess.dataConn = conn
	sess.pasv = PasvDataConnected
	sess.lastPasvActivity = now
	return nil
}

// closePasvResources tears down both the listener and any data connection,
// aggregating close errors via internal/teardown, and returns to idle.
// The transient PasvClosing phase is visible to anything inspecting
// sess.pasv while teardown.CloseAll is running (e.g. a concurrent log
// line), even though the actual Close calls are synchronous here.
func (srv *Server) closePasvResources(sess *Session) {
	if sess.pasv != PasvIdle {
		sess.pasv = PasvClosing
	}
	err := teardown.CloseAll(asCloser(sess.dataConn), asCloser(sess.pasvListener))
	if err != nil {
		logTag(srv.scratch, srv.cfg.Logger, LevelWarn, "PASV", "error closing passive resources: %v", err)
	}
	sess.dataConn = nil
	sess.pasvListener = nil
	sess.pasv = PasvIdle
}

// asCloser passes a possibly-nil Conn/Listener on as a teardown.Closer. A
// nil interface value comes out as nil, which CloseAll skips; a non-nil
// interface value (even one holding a nil pointer) is returned unchanged.
func asCloser(c interface{ Close() error }) teardown.Closer {
	if c == nil {
		return nil
	}
	return c
}

func isWouldBlock(err error) bool {
	return err != nil && KindFromError(err) == KindWouldBlock
}
