package ftpcore

import (
	"errors"
	"fmt"
)

// Kind is a backend signal the engine reacts to. Kinds are shared between
// the Net and Fs contracts where the names overlap (WouldBlock, Closed,
// Timeout, IO); the Fs-specific kinds only ever come from an Fs call.
//
// The engine owns its own sentinel set instead of reusing os.* - the Fs
// contract here is not a thin os.File wrapper, so os.ErrNotExist would be
// the wrong abstraction to lean on.
type Kind int

const (
	// KindWouldBlock: cooperative retry, never surfaced to the client.
	KindWouldBlock Kind = iota
	// KindClosed: the owning scope (control, data, file) must tear down.
	KindClosed
	// KindTimeout: teardown with a protocol-appropriate reply.
	KindTimeout
	// KindIO: generic transport/local I/O failure.
	KindIO
	// KindAddrUnavailable: Net-only, PASV listener couldn't bind/report.
	KindAddrUnavailable

	// Fs-only kinds, see the Fs-error table below.
	KindNotFound
	KindNotDir
	KindIsDir
	KindExists
	KindPermissionDenied
	KindInvalidPath
	KindNoSpace
	KindReadOnly
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindWouldBlock:
		return "would-block"
	case KindClosed:
		return "closed"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	case KindAddrUnavailable:
		return "addr-unavailable"
	case KindNotFound:
		return "not-found"
	case KindNotDir:
		return "not-dir"
	case KindIsDir:
		return "is-dir"
	case KindExists:
		return "exists"
	case KindPermissionDenied:
		return "permission-denied"
	case KindInvalidPath:
		return "invalid-path"
	case KindNoSpace:
		return "no-space"
	case KindReadOnly:
		return "read-only"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with backend context. Backends should return one of
// these (see NewError) from Net/Fs calls; the engine never inspects
// anything but the Kind, and KindFromError treats any error that is not
// an *Error as KindIO.
type Error struct {
	K   Kind
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.K, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.K)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ftpcore.KindOf(KindNotFound)) work without callers
// needing to know about the Error struct.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && k.k == e.K
}

type kindSentinel struct{ k Kind }

func (kindSentinel) Error() string { return "kind sentinel" }

// KindOf returns a sentinel usable with errors.Is to test an error's Kind.
func KindOf(k Kind) error { return kindSentinel{k: k} }

// NewError builds a *Error for backend implementations.
func NewError(op string, k Kind, cause error) error {
	return &Error{K: k, Op: op, Err: cause}
}

// KindFromError extracts a Kind from any error produced via NewError,
// defaulting to KindIO for anything else (a backend bug, not a protocol
// condition - the engine must still produce exactly one reply line).
func KindFromError(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.K
	}
	return KindIO
}

// fsReply is one row of the Fs-error table: how a Kind maps to a numeric
// FTP reply and its canonical text.
type fsReply struct {
	code int
	text string
}

var fsErrorTable = map[Kind]fsReply{
	KindInvalidPath:      {553, "Requested action not taken. File name not allowed"},
	KindNoSpace:          {452, "Insufficient storage space"},
	KindIO:               {451, "Requested action aborted: local error in processing"},
	KindPermissionDenied: {550, "Permission denied"},
	KindReadOnly:         {550, "Permission denied"},
	KindNotFound:         {550, "File not found"},
	KindExists:           {550, "File exists"},
	KindUnsupported:      {502, "Command not implemented"},
}

// fsErrorReply maps any Fs error kind to its FTP reply. Kinds with no
// explicit row (is-dir, not-dir, and anything unrecognised) fall through to
// the catch-all 550 row.
func fsErrorReply(k Kind) (int, string) {
	if r, ok := fsErrorTable[k]; ok {
		return r.code, r.text
	}
	return 550, "Requested action not taken"
}

func errTooSmall(name string, got, want int) error {
	return fmt.Errorf("ftpcore: %s buffer too small: have %d, need >= %d", name, got, want)
}
