package ftpcore_test

import (
	"testing"

	"ftpcore"
	"ftpcore/ftpcoretest"
)

func TestLineReaderYieldsOneLinePerPoll(t *testing.T) {
	conn := &ftpcoretest.Conn{ReadSteps: []ftpcoretest.Step{{Data: []byte("USER a\r\nPASS b\r\n")}}}
	r := ftpcore.NewLineReader(make([]byte, 64))

	ev, err := r.Poll(conn)
	if err != nil || ev.Kind != ftpcore.LineOK || string(ev.Line) != "USER a" {
		t.Fatalf("first poll = (%v, %v, %v), want USER a", ev.Kind, string(ev.Line), err)
	}
	ev, err = r.Poll(conn)
	if err != nil || ev.Kind != ftpcore.LineOK || string(ev.Line) != "PASS b" {
		t.Fatalf("second poll = (%v, %v, %v), want PASS b", ev.Kind, string(ev.Line), err)
	}
	ev, err = r.Poll(conn)
	if err != nil || ev.Kind != ftpcore.LineNone {
		t.Fatalf("third poll = (%v, %v), want LineNone", ev.Kind, err)
	}
}

func TestLineReaderWouldBlock(t *testing.T) {
	conn := &ftpcoretest.Conn{ReadSteps: []ftpcoretest.Step{{WouldBlock: true}, {Data: []byte("NOOP\r\n")}}}
	r := ftpcore.NewLineReader(make([]byte, 64))

	ev, err := r.Poll(conn)
	if err != nil || ev.Kind != ftpcore.LineNone {
		t.Fatalf("poll during would-block = (%v, %v), want LineNone/nil", ev.Kind, err)
	}
	ev, err = r.Poll(conn)
	if err != nil || ev.Kind != ftpcore.LineOK || string(ev.Line) != "NOOP" {
		t.Fatalf("poll after would-block = (%v, %v, %v), want NOOP", ev.Kind, string(ev.Line), err)
	}
}

func TestLineReaderOverlongLine(t *testing.T) {
	buf := make([]byte, 10)
	r := ftpcore.NewLineReader(buf)
	conn := &ftpcoretest.Conn{ReadSteps: []ftpcoretest.Step{{Data: []byte("0123456789ABCDE\r\nNOOP\r\n")}}}

	var sawTooLong bool
	for i := 0; i < 10; i++ {
		ev, err := r.Poll(conn)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if ev.Kind == ftpcore.LineTooLong {
			sawTooLong = true
			continue
		}
		if ev.Kind == ftpcore.LineOK {
			if string(ev.Line) != "NOOP" {
				t.Fatalf("unexpected line %q", ev.Line)
			}
			if !sawTooLong {
				t.Fatal("got NOOP before seeing LineTooLong")
			}
			return
		}
	}
	t.Fatal("never recovered a NOOP line after overlong discard")
}

func TestLineReaderSurfacesClosed(t *testing.T) {
	conn := &ftpcoretest.Conn{ReadSteps: []ftpcoretest.Step{{Closed: true}}}
	r := ftpcore.NewLineReader(make([]byte, 64))
	_, err := r.Poll(conn)
	if ftpcore.KindFromError(err) != ftpcore.KindClosed {
		t.Fatalf("want KindClosed, got %v", err)
	}
}
