package ftpcore_test

import (
	"bytes"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"ftpcore"
	"ftpcore/ftpcoretest"
)

// TestLineReaderNeverExceedsBuffer checks that, for any split of any
// randomly generated command stream into arbitrarily sized read chunks,
// LineReader either yields a line that fits the buffer or reports
// LineTooLong - it never panics or silently truncates.
func TestLineReaderNeverExceedsBuffer(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bufSize := rapid.IntRange(8, 64).Draw(t, "bufSize")
		lineCount := rapid.IntRange(0, 6).Draw(t, "lineCount")

		var stream bytes.Buffer
		for i := 0; i < lineCount; i++ {
			n := rapid.IntRange(0, bufSize*2).Draw(t, "lineLen")
			for j := 0; j < n; j++ {
				stream.WriteByte(byte(rapid.IntRange('a', 'z').Draw(t, "lineByte")))
			}
			stream.WriteString("\r\n")
		}
		chunkSize := rapid.IntRange(1, 16).Draw(t, "chunkSize")

		conn := &ftpcoretest.Conn{}
		data := stream.Bytes()
		for len(data) > 0 {
			n := chunkSize
			if n > len(data) {
				n = len(data)
			}
			conn.ReadSteps = append(conn.ReadSteps, ftpcoretest.Step{Data: data[:n]})
			data = data[n:]
		}
		conn.ReadSteps = append(conn.ReadSteps, ftpcoretest.Step{WouldBlock: true})

		r := ftpcore.NewLineReader(make([]byte, bufSize))
		for i := 0; i < 1000; i++ {
			ev, err := r.Poll(conn)
			if err != nil {
				if ftpcore.KindFromError(err) == ftpcore.KindWouldBlock {
					return
				}
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Kind == ftpcore.LineOK && len(ev.Line) > bufSize-2 {
				t.Fatalf("yielded line of length %d exceeds buffer-2 bound %d", len(ev.Line), bufSize-2)
			}
		}
	})
}

// TestReplyWriterPreservesBytesAcrossPartialFlushes checks that, no matter
// how a Conn.Write is chopped into short writes, every byte that was
// queued eventually reaches the connection, in order, exactly once.
func TestReplyWriterPreservesBytesAcrossPartialFlushes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		textLen := rapid.IntRange(0, 100).Draw(t, "textLen")
		textBytes := make([]byte, textLen)
		for i := range textBytes {
			textBytes[i] = byte(rapid.IntRange('a', 'z').Draw(t, "textByte"))
		}
		text := string(textBytes)
		code := rapid.IntRange(200, 559).Draw(t, "code")
		writeLimit := rapid.IntRange(1, 8).Draw(t, "writeLimit")

		w := ftpcore.NewReplyWriter(make([]byte, 256))
		if err := w.QueueSingle(code, text); err != nil {
			t.Fatalf("QueueSingle: %v", err)
		}

		conn := &ftpcoretest.Conn{WriteLimit: writeLimit}
		for i := 0; i < 1000 && w.Pending(); i++ {
			if _, err := w.Flush(conn); err != nil {
				t.Fatalf("flush: %v", err)
			}
		}
		if w.Pending() {
			t.Fatal("reply never finished flushing")
		}

		wantLine := fmt.Sprintf("%d %s\r\n", code, text)
		if string(conn.Written) != wantLine {
			t.Fatalf("got %q, want %q", conn.Written, wantLine)
		}
	})
}
