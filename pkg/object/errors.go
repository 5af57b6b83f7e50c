package object

import "errors"

// Error taxonomy shared across the core: NotFound, Corrupt, Conflict,
// Invalid, Permission, Protocol, UserAbort. Callers test for them with
// errors.Is. Other packages (lock, refs, index, merge, workspace, wire)
// also declare sentinels of their own.
var (
	ErrNotFound   = errors.New("not found")
	ErrCorrupt    = errors.New("corrupt")
	ErrConflict   = errors.New("conflict")
	ErrInvalid    = errors.New("invalid")
	ErrPermission = errors.New("permission")
	ErrProtocol   = errors.New("protocol")
	ErrUserAbort  = errors.New("user abort")
)
