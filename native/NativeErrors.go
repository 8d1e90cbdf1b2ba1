package native

import "errors"

// Handle errors
var (
	// ErrInvalidHandle indicates a native address that was never created or was already freed.
	ErrInvalidHandle = errors.New("invalid native handle")

	// ErrHandleInUse indicates CreateNative on an object that already owns a native instance.
	ErrHandleInUse = errors.New("native handle already created")
)

// Reference errors
var (
	// ErrStaleRef indicates a global reference that was already deleted or never issued.
	ErrStaleRef = errors.New("stale global reference")
)
