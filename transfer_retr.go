package ftpcore

import "ftpcore/internal/teardown"

// startRETR opens the file reader for a RETR command.
func (srv *Server) startRETR(sess *Session, path string) error {
	if path == "" {
		return srv.reply.QueueSingle(501, "Syntax error in parameters")
	}
	f, err := srv.fs.FileOpenRead(path)
	if err != nil {
		return srv.replyFsError(err)
	}
	sess.retr = retrRecord{phase: XferWaitingAccept, file: f}
	return nil
}

// driveRETR advances the RETR state machine by at most one step per tick.
func (srv *Server) driveRETR(sess *Session, now int64) error {
	r := &sess.retr
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
			srv.abortRETR(sess)
			return srv.reply.QueueSingle(425, "Use PASV first")
		}
		return nil
	}

	// streaming: flush any unsent chunk before reading more.
	if r.chunkOffset < r.chunkLen {
		n, err := sess.dataConn.Write(srv.storage.Transfer[r.chunkOffset:r.chunkLen])
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			srv.abortRETR(sess)
			return srv.reply.QueueSingle(426, "Connection closed; transfer aborted")
		}
		if n == 0 {
			srv.abortRETR(sess)
			return srv.reply.QueueSingle(426, "Connection closed; transfer aborted")
		}
		r.chunkOffset += n
		sess.lastTransferActivity = now
		return nil
	}

	if r.eof {
		srv.finishRETR(sess)
		return srv.reply.QueueSingle(226, "Closing data connection")
	}

	n, err := r.file.Read(srv.storage.Transfer)
	if err != nil {
		srv.abortRETR(sess)
		return srv.replyFsError(err)
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

func (srv *Server) finishRETR(sess *Session) {
	r := &sess.retr
	if err := teardown.CloseAll(r.file); err != nil {
		logTag(srv.scratch, srv.cfg.Logger, LevelWarn, "RETR", "error closing file: %v", err)
	}
	srv.closePasvResources(sess)
	sess.retr = retrRecord{}
	sess.lastTransferActivity = 0
}

func (srv *Server) abortRETR(sess *Session) { srv.finishRETR(sess) }
