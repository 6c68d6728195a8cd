package ftpcore

import "time"

// Fs is the filesystem capability contract the engine consumes. A
// concrete implementation enforces its own sandboxing and
// rejects NUL bytes in paths; the engine additionally rejects empty paths
// itself (see server.go) and surfaces 503 for ill-sequenced RNTO.
//
// Optional operations are feature-detected at runtime via the Capabilities
// method: a backend that doesn't support MakeDir/RemoveDir/FileSize/
// FileMtime returns false for the corresponding bit, the engine replies 502
// to the matching command, and FEAT omits the matching feature name.
type Fs interface {
	// CwdInit acquires the current-directory handle for a freshly
	// authenticated session. Called once, right after PASS succeeds.
	CwdInit() (Cwd, error)

	// Capabilities reports which optional operations this backend
	// supports.
	Capabilities() Capabilities

	// Delete removes a file.
	Delete(path string) error
	// Rename moves path 'from' to path 'to'.
	Rename(from, to string) error

	// MakeDir creates a directory. Only called if Capabilities().MakeDir.
	MakeDir(path string) error
	// RemoveDir removes a directory. Only called if
	// Capabilities().RemoveDir.
	RemoveDir(path string) error
	// FileSize reports a file's size in bytes. Only called if
	// Capabilities().FileSize.
	FileSize(path string) (int64, error)
	// FileMtime reports a file's modification time as seconds since the
	// Unix epoch, UTC. Only called if Capabilities().FileMtime.
	FileMtime(path string) (int64, error)

	// DirOpen opens a directory iterator rooted at the current directory
	// (path == "") or at path.
	DirOpen(path string) (DirIter, error)

	// FileOpenRead opens path for streaming read.
	FileOpenRead(path string) (FileReader, error)
	// FileOpenWrite opens path for streaming, truncating write.
	FileOpenWrite(path string) (FileWriter, error)
}

// Capabilities reports which optional Fs operations a backend supports.
type Capabilities struct {
	MakeDir   bool
	RemoveDir bool
	FileSize  bool
	FileMtime bool
}

// Cwd is the current-directory handle for one session.
type Cwd interface {
	// Pwd writes the absolute current directory into buf and returns the
	// written slice. Returns KindIO (mapped to 451) if buf is too small.
	Pwd(buf []byte) ([]byte, error)
	// Change moves to a relative or absolute path.
	Change(path string) error
	// Up moves to the parent directory.
	Up() error
}

// EntryKind distinguishes directory entries.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDir
)

// Entry is one directory entry. A DirIter may reuse the same Entry value
// across calls - callers must not retain it past the next Next call.
type Entry struct {
	Name     string
	Kind     EntryKind
	HasSize  bool
	Size     int64
	HasMtime bool
	Mtime    time.Time
}

// DirIter iterates a directory opened via Fs.DirOpen.
type DirIter interface {
	// Next returns the next entry, or ok == false at exhaustion.
	Next() (e Entry, ok bool, err error)
	Close() error
}

// FileReader streams a file's bytes for RETR.
type FileReader interface {
	// Read reads into p. A zero length, non-error read means EOF.
	Read(p []byte) (n int, err error)
	Close() error
}

// FileWriter streams a file's bytes for STOR.
type FileWriter interface {
	// Write writes from p, honoring short writes. A zero length write
	// that makes no progress and returns no error is a local error (the
	// engine maps it to 451).
	Write(p []byte) (n int, err error)
	Close() error
}
