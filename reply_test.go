package ftpcore_test

import (
	"testing"

	"ftpcore"
	"ftpcore/ftpcoretest"
)

func TestReplyWriterQueueAndFlush(t *testing.T) {
	w := ftpcore.NewReplyWriter(make([]byte, 64))
	if err := w.QueueSingle(220, "FTP Server Ready"); err != nil {
		t.Fatal(err)
	}
	if !w.Pending() {
		t.Fatal("expected pending after queue")
	}
	conn := &ftpcoretest.Conn{WriteLimit: 4}
	for w.Pending() {
		if _, err := w.Flush(conn); err != nil {
			t.Fatal(err)
		}
	}
	if got := string(conn.Written); got != "220 FTP Server Ready\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestReplyWriterRefusesDoubleQueue(t *testing.T) {
	w := ftpcore.NewReplyWriter(make([]byte, 64))
	if err := w.QueueSingle(200, "ok"); err != nil {
		t.Fatal(err)
	}
	if err := w.QueueSingle(200, "again"); err == nil {
		t.Fatal("expected error queuing while pending")
	}
}

func TestReplyWriterFeat(t *testing.T) {
	w := ftpcore.NewReplyWriter(make([]byte, 128))
	if err := w.QueueFeat([]string{"TYPE I", "PASV", "SIZE", "MDTM"}); err != nil {
		t.Fatal(err)
	}
	conn := &ftpcoretest.Conn{}
	if _, err := w.Flush(conn); err != nil {
		t.Fatal(err)
	}
	want := "211-Features:\r\n TYPE I\r\n PASV\r\n SIZE\r\n MDTM\r\n211 End\r\n"
	if got := string(conn.Written); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReplyWriterFlushIdempotentOnceDone(t *testing.T) {
	w := ftpcore.NewReplyWriter(make([]byte, 64))
	_ = w.QueueSingle(226, "Closing data connection")
	conn := &ftpcoretest.Conn{}
	conn.Closed = false
	// An unlimited conn takes the whole reply in the first Flush; a second
	// Flush with nothing pending must also report FlushDone.
	res, err := w.Flush(conn)
	if err != nil || res != ftpcore.FlushDone {
		t.Fatalf("Flush = (%v, %v), want FlushDone/nil", res, err)
	}
	res, err = w.Flush(conn)
	if err != nil || res != ftpcore.FlushDone {
		t.Fatalf("second Flush = (%v, %v), want FlushDone/nil", res, err)
	}
}
