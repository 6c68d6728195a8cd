package ftpcore

import "ftpcore/internal/teardown"

// startSTOR opens the truncating file writer for a STOR command.
func (srv *Server) startSTOR(sess *Session, path string) error {
	if path == "" {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	f, err := srv.fs.FileOpenWrite(path)
	if err != nil {
		return srv.replyFsError(err)
	}
	sess.stor = storRecord{phase: XferWaitingAccept, file: f}
	return nil
}

// driveSTOR advances the STOR state machine by at most one step per tick:
// read from the data connection, write to the file. Partial file writes
// are normal and resume on the next tick.
func (srv *Server) driveSTOR(sess *Session, now int64) error {
	r := &sess.stor
	if r.idle() || srv.reply.Pending() {
		return nil
	}

	if r.phase == XferWaitingAccept {
		if sess.pasv == PasvDataConnected {
			if err := srv.reply.QueueSingle(150, "Opening data connection"); err != nil {
				return err
			}
			r.phase = XferStreaming
			sess.pasv = PasvTransferring
			sess.lastTransferActivity = now
			return nil
		}
		if sess.pasv != PasvListening && sess.pasv != PasvDataConnected {
			srv.abortSTOR(sess)
			return srv.reply.QueueSingle(425, "Use PASV first")
		}
		return nil
	}

	// streaming: flush any staged chunk to the file before reading more.
	if r.chunkOffset < r.chunkLen {
		n, err := r.file.Write(srv.storage.Transfer[r.chunkOffset:r.chunkLen])
		if err != nil {
			srv.abortSTOR(sess)
			return srv.replyFsError(err)
		}
		if n == 0 {
			srv.abortSTOR(sess)
			return srv.reply.QueueSingle(451, "Requested action aborted: local error in processing")
		}
		r.chunkOffset += n
		sess.lastTransferActivity = now
		return nil
	}

	if r.eof {
		srv.finishSTOR(sess)
		return srv.reply.QueueSingle(226, "Closing data connection")
	}

	n, err := sess.dataConn.Read(srv.storage.Transfer)
	if err != nil {
		if isWouldBlock(err) {
			return nil
		}
		if KindFromError(err) == KindClosed {
			r.eof = true
			return nil
		}
		srv.abortSTOR(sess)
		return srv.reply.QueueSingle(426, "Connection closed; transfer aborted")
	}
	if n == 0 {
		r.eof = true
		return nil
	}
	r.chunkLen = n
	r.chunkOffset = 0
	sess.lastTransferActivity = now
	return nil
}

func (srv *Server) finishSTOR(sess *Session) {
	r := &sess.stor
	if err := teardown.CloseAll(r.file); err != nil {
		logTag(srv.scratch, srv.cfg.Logger, LevelWarn, "STOR", "error closing file: %v", err)
	}
	srv.closePasvResources(sess)
	sess.stor = storRecord{}
	sess.lastTransferActivity = 0
}

func (srv *Server) abortSTOR(sess *Session) { srv.finishSTOR(sess) }
