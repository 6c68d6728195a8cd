// Package ftpcoretest provides deterministic, scripted Net and Fs doubles
// for exercising ftpcore.Server - supports the test suite, not shipped.
// Rather than a concrete backend, each double is a small struct whose
// behaviour is entirely driven by what the test scripts into it ahead of
// time.
package ftpcoretest

import (
	"path"
	"strings"

	"ftpcore"
)

// Step is one scripted outcome for a Conn.Read call.
type Step struct {
	Data       []byte
	WouldBlock bool
	Closed     bool
}

// Conn is a scripted, non-blocking ftpcore.Conn double.
type Conn struct {
	ReadSteps  []Step
	WriteLimit int // max bytes accepted per Write call; 0 = unlimited
	Written    []byte
	Closed     bool
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.Closed {
		return 0, ftpcore.NewError("mockconn.Read", ftpcore.KindClosed, nil)
	}
	if len(c.ReadSteps) == 0 {
		return 0, ftpcore.NewError("mockconn.Read", ftpcore.KindWouldBlock, nil)
	}
	step := c.ReadSteps[0]
	if step.WouldBlock {
		c.ReadSteps = c.ReadSteps[1:]
		return 0, ftpcore.NewError("mockconn.Read", ftpcore.KindWouldBlock, nil)
	}
	if step.Closed {
		c.ReadSteps = c.ReadSteps[1:]
		return 0, ftpcore.NewError("mockconn.Read", ftpcore.KindClosed, nil)
	}
	n := copy(p, step.Data)
	if n < len(step.Data) {
		c.ReadSteps[0].Data = step.Data[n:]
	} else {
		c.ReadSteps = c.ReadSteps[1:]
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.Closed {
		return 0, ftpcore.NewError("mockconn.Write", ftpcore.KindClosed, nil)
	}
	n := len(p)
	if c.WriteLimit > 0 && n > c.WriteLimit {
		n = c.WriteLimit
	}
	c.Written = append(c.Written, p[:n]...)
	return n, nil
}

func (c *Conn) Close() error {
	c.Closed = true
	return nil
}

// Listener is a no-op ftpcore.Listener double.
type Listener struct{ Closed bool }

func (l *Listener) Close() error { l.Closed = true; return nil }

// Net is a scripted ftpcore.Net double: tests push connections onto
// PendingControl/PendingData ahead of time and Net hands them out one per
// call, returning KindWouldBlock once the queue is empty.
type Net struct {
	PendingControl []ftpcore.Conn
	PendingData    []ftpcore.Conn
	PasvAddr       string
	Listeners      []*Listener
}

func NewNet() *Net {
	return &Net{PasvAddr: "10,11,12,13,8,77"}
}

func (n *Net) AcceptControl() (ftpcore.Conn, error) {
	if len(n.PendingControl) == 0 {
		return nil, ftpcore.NewError("mocknet.AcceptControl", ftpcore.KindWouldBlock, nil)
	}
	c := n.PendingControl[0]
	n.PendingControl = n.PendingControl[1:]
	return c, nil
}

func (n *Net) PasvListen(bindHint string) (ftpcore.Listener, error) {
	l := &Listener{}
	n.Listeners = append(n.Listeners, l)
	return l, nil
}

func (n *Net) AcceptData(l ftpcore.Listener) (ftpcore.Conn, error) {
	if len(n.PendingData) == 0 {
		return nil, ftpcore.NewError("mocknet.AcceptData", ftpcore.KindWouldBlock, nil)
	}
	c := n.PendingData[0]
	n.PendingData = n.PendingData[1:]
	return c, nil
}

func (n *Net) FormatPasvAddress(l ftpcore.Listener) (string, error) {
	return n.PasvAddr, nil
}

// Fs is an in-memory ftpcore.Fs double. Paths are plain forward-slash
// strings used as map keys exactly as given; only the Cwd handle's Change
// resolves a relative path against the current directory, and DirOpen("")
// lists "/". A handful of magic basenames ("missing", "locked", "ioerr",
// "full", "exists", "badpath\x00") force the corresponding error Kind, for
// exercising the Fs-to-reply error mapping directly.
type Fs struct {
	Caps  ftpcore.Capabilities
	Files map[string][]byte
	Dirs  map[string][]string
	Sizes map[string]int64
	Mtime map[string]int64
	// WriteLimits caps how many bytes FileOpenWrite's writer accepts per
	// Write call for a given path, for scripting partial-write schedules.
	// 0/absent means unlimited.
	WriteLimits map[string]int
}

func NewFs() *Fs {
	return &Fs{
		Caps:        ftpcore.Capabilities{MakeDir: true, RemoveDir: true, FileSize: true, FileMtime: true},
		Files:       map[string][]byte{},
		Dirs:        map[string][]string{"/": {}},
		WriteLimits: map[string]int{},
	}
}

func magicErr(name string) error {
	switch name {
	case "missing":
		return ftpcore.NewError("fs", ftpcore.KindNotFound, nil)
	case "locked":
		return ftpcore.NewError("fs", ftpcore.KindPermissionDenied, nil)
	case "ioerr":
		return ftpcore.NewError("fs", ftpcore.KindIO, nil)
	case "full":
		return ftpcore.NewError("fs", ftpcore.KindNoSpace, nil)
	case "exists":
		return ftpcore.NewError("fs", ftpcore.KindExists, nil)
	case "badpath\x00":
		return ftpcore.NewError("fs", ftpcore.KindInvalidPath, nil)
	default:
		return nil
	}
}

func (f *Fs) CwdInit() (ftpcore.Cwd, error) {
	return &cwd{fs: f, dir: "/"}, nil
}

func (f *Fs) Capabilities() ftpcore.Capabilities { return f.Caps }

func (f *Fs) Delete(p string) error {
	if err := magicErr(path.Base(p)); err != nil {
		return err
	}
	if _, ok := f.Files[p]; !ok {
		return ftpcore.NewError("Delete", ftpcore.KindNotFound, nil)
	}
	delete(f.Files, p)
	return nil
}

func (f *Fs) Rename(from, to string) error {
	if err := magicErr(path.Base(from)); err != nil {
		return err
	}
	data, ok := f.Files[from]
	if !ok {
		return ftpcore.NewError("Rename", ftpcore.KindNotFound, nil)
	}
	delete(f.Files, from)
	f.Files[to] = data
	return nil
}

func (f *Fs) MakeDir(p string) error {
	if err := magicErr(path.Base(p)); err != nil {
		return err
	}
	if _, ok := f.Dirs[p]; ok {
		return ftpcore.NewError("MakeDir", ftpcore.KindExists, nil)
	}
	f.Dirs[p] = nil
	return nil
}

func (f *Fs) RemoveDir(p string) error {
	if err := magicErr(path.Base(p)); err != nil {
		return err
	}
	if _, ok := f.Dirs[p]; !ok {
		return ftpcore.NewError("RemoveDir", ftpcore.KindNotFound, nil)
	}
	delete(f.Dirs, p)
	return nil
}

func (f *Fs) FileSize(p string) (int64, error) {
	if err := magicErr(path.Base(p)); err != nil {
		return 0, err
	}
	if n, ok := f.Sizes[p]; ok {
		return n, nil
	}
	if data, ok := f.Files[p]; ok {
		return int64(len(data)), nil
	}
	return 0, ftpcore.NewError("FileSize", ftpcore.KindNotFound, nil)
}

func (f *Fs) FileMtime(p string) (int64, error) {
	if err := magicErr(path.Base(p)); err != nil {
		return 0, err
	}
	if t, ok := f.Mtime[p]; ok {
		return t, nil
	}
	return 0, nil
}

func (f *Fs) DirOpen(p string) (ftpcore.DirIter, error) {
	if p == "" {
		p = "/"
	}
	if err := magicErr(path.Base(p)); err != nil {
		return nil, err
	}
	names, ok := f.Dirs[p]
	if !ok {
		return nil, ftpcore.NewError("DirOpen", ftpcore.KindNotFound, nil)
	}
	entries := make([]ftpcore.Entry, 0, len(names))
	for _, name := range names {
		full := strings.TrimSuffix(p, "/") + "/" + name
		if _, isDir := f.Dirs[full]; isDir {
			entries = append(entries, ftpcore.Entry{Name: name, Kind: ftpcore.EntryDir})
			continue
		}
		data := f.Files[full]
		entries = append(entries, ftpcore.Entry{Name: name, Kind: ftpcore.EntryFile, HasSize: true, Size: int64(len(data))})
	}
	return &dirIter{entries: entries}, nil
}

func (f *Fs) FileOpenRead(p string) (ftpcore.FileReader, error) {
	if err := magicErr(path.Base(p)); err != nil {
		return nil, err
	}
	data, ok := f.Files[p]
	if !ok {
		return nil, ftpcore.NewError("FileOpenRead", ftpcore.KindNotFound, nil)
	}
	return &fileReader{data: data}, nil
}

func (f *Fs) FileOpenWrite(p string) (ftpcore.FileWriter, error) {
	if err := magicErr(path.Base(p)); err != nil {
		return nil, err
	}
	return &fileWriter{fs: f, path: p, limit: f.WriteLimits[p]}, nil
}

type cwd struct {
	fs  *Fs
	dir string
}

func (c *cwd) Pwd(buf []byte) ([]byte, error) {
	if len(c.dir) > len(buf) {
		return nil, ftpcore.NewError("Pwd", ftpcore.KindIO, nil)
	}
	n := copy(buf, c.dir)
	return buf[:n], nil
}

func (c *cwd) Change(p string) error {
	if err := magicErr(path.Base(p)); err != nil {
		return err
	}
	target := p
	if !strings.HasPrefix(target, "/") {
		target = strings.TrimSuffix(c.dir, "/") + "/" + target
	}
	target = path.Clean(target)
	if _, ok := c.fs.Dirs[target]; !ok {
		return ftpcore.NewError("Change", ftpcore.KindNotFound, nil)
	}
	c.dir = target
	return nil
}

func (c *cwd) Up() error {
	if c.dir == "/" {
		return nil
	}
	c.dir = path.Dir(c.dir)
	return nil
}

type dirIter struct {
	entries []ftpcore.Entry
	idx     int
}

func (d *dirIter) Next() (ftpcore.Entry, bool, error) {
	if d.idx >= len(d.entries) {
		return ftpcore.Entry{}, false, nil
	}
	e := d.entries[d.idx]
	d.idx++
	return e, true, nil
}

func (d *dirIter) Close() error { return nil }

type fileReader struct {
	data []byte
	off  int
}

func (r *fileReader) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func (r *fileReader) Close() error { return nil }

type fileWriter struct {
	fs    *Fs
	path  string
	data  []byte
	limit int
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.limit > 0 && n > w.limit {
		n = w.limit
	}
	w.data = append(w.data, p[:n]...)
	w.fs.Files[w.path] = append([]byte(nil), w.data...)
	return n, nil
}

func (w *fileWriter) Close() error { return nil }
