package core

import "errors"

var (
	// ErrUnknownDirective is logged when a server frame's prefix does not
	// match any registered directive; the frame is discarded.
	ErrUnknownDirective = errors.New("unknown server directive")

	// ErrMalformedFrame is logged when an RPC request frame is truncated
	// or its method/uid field overflows the configured maximum length; the
	// frame is discarded.
	ErrMalformedFrame = errors.New("malformed RPC request frame")

	// ErrTooManyRetries is the disconnect cause once login retries are
	// exhausted.
	ErrTooManyRetries = errors.New("too many auth retries")

	// ErrTooManyAuthAttempts is the disconnect cause for a server-side
	// TOO_MANY_AUTH_ATTEMPTS rejection, which is always terminal.
	ErrTooManyAuthAttempts = errors.New("server reported too many auth attempts")

	// ErrPoolExhausted names a buffer pool allocation failure. Nothing in
	// this package returns it: BufPool.Acquire has no error result.
	ErrPoolExhausted = errors.New("buffer pool exhausted")

	// ErrDoubleRelease is the debug-build assertion failure for releasing
	// a buffer twice, or releasing memory the pool did not hand out.
	ErrDoubleRelease = errors.New("buffer pool: double release or foreign block")

	// ErrMethodTooLong is returned by Registry.Register when name exceeds
	// MaxMethodNameLen.
	ErrMethodTooLong = errors.New("rpc method name too long")

	// ErrAlreadyRegistered is returned by Registry.Register when name is
	// already bound to a live (non-tombstoned) handler.
	ErrAlreadyRegistered = errors.New("rpc method already registered")

	// ErrDirectiveTooLong is the programmer-error assertion for router
	// prefixes that exceed MaxDirectiveLen.
	ErrDirectiveTooLong = errors.New("directive prefix exceeds MaxDirectiveLen")

	// ErrTooManyHandlers is the programmer-error assertion for exceeding
	// MaxHandlersCount registered directives.
	ErrTooManyHandlers = errors.New("too many registered directives")

	// ErrNotReady names an operation attempted without an established,
	// authenticated session. Nothing in this package returns it:
	// Registry.Register before ready defers advertisement instead.
	ErrNotReady = errors.New("client not ready")
)
