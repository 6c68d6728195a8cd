package ftpcore

import (
	"fmt"

	"ftpcore/internal/teardown"
)

// startLIST opens the directory iterator for a LIST command. Must be
// called only when authed and PASV phase != idle; a failure here means
// the transfer never starts and no 150 is ever queued.
func (srv *Server) startLIST(sess *Session, path string) error {
	iter, err := srv.fs.DirOpen(path)
	if err != nil {
		return srv.replyFsError(err)
	}
	sess.list = listRecord{phase: XferWaitingAccept, iter: iter}
	return nil
}

// driveLIST advances the LIST state machine by at most one step per tick.
func (srv *Server) driveLIST(sess *Session, now int64) error {
	l := &sess.list
	if l.idle() || srv.reply.Pending() {
		return nil
	}

	if l.phase == XferWaitingAccept {
		if sess.pasv == PasvDataConnected {
			if err := srv.reply.QueueSingle(150, "Here comes the directory listing"); err != nil {
				return err
			}
			l.phase = XferStreaming
			sess.pasv = PasvTransferring
			sess.lastTransferActivity = now
			return nil
		}
		if sess.pasv != PasvListening && sess.pasv != PasvDataConnected {
			srv.abortLIST(sess)
			return srv.reply.QueueSingle(425, "Use PASV first")
		}
		return nil
	}

	// streaming
	if l.lineOffset < l.lineLen {
		n, err := sess.dataConn.Write(srv.storage.Transfer[l.lineOffset:l.lineLen])
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			srv.abortLIST(sess)
			return srv.reply.QueueSingle(426, "Connection closed; transfer aborted")
		}
		if n == 0 {
			srv.abortLIST(sess)
			return srv.reply.QueueSingle(426, "Connection closed; transfer aborted")
		}
		l.lineOffset += n
		sess.lastTransferActivity = now
		return nil
	}

	if l.exhausted {
		srv.finishLIST(sess)
		return srv.reply.QueueSingle(226, "Directory send OK")
	}

	entry, ok, err := l.iter.Next()
	if err != nil {
		srv.abortLIST(sess)
		return srv.replyFsError(err)
	}
	if !ok {
		l.exhausted = true
		return nil
	}
	line := formatListEntry(entry)
	n := copy(srv.storage.Transfer, line)
	l.lineLen = n
	l.lineOffset = 0
	sess.lastTransferActivity = now
	return nil
}

// formatListEntry renders one UNIX-like listing line.
func formatListEntry(e Entry) string {
	mode := "-rw-r--r--"
	if e.Kind == EntryDir {
		mode = "drwxr-xr-x"
	}
	size := int64(0)
	if e.HasSize {
		size = e.Size
	}
	return fmt.Sprintf("%s 1 owner group %d Jan 01 00:00 %s\r\n", mode, size, e.Name)
}

func (srv *Server) finishLIST(sess *Session) {
	l := &sess.list
	err := teardown.CloseAll(l.iter)
	if err != nil {
		logTag(srv.scratch, srv.cfg.Logger, LevelWarn, "LIST", "error closing directory iterator: %v", err)
	}
	srv.closePasvResources(sess)
	sess.list = listRecord{}
	sess.lastTransferActivity = 0
}

func (srv *Server) abortLIST(sess *Session) { srv.finishLIST(sess) }
