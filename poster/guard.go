package poster

import "github.com/warp/sage-poster/engine"

// use opens a ledger or journal handle, runs fn with it and closes the
// handle on every exit path, including a failed open and a panic in fn.
// A failed open becomes a resource-unavailable error carrying unavailable
// as its message.
func use[H any](open func() (H, error), closeFn func() error, unavailable string, fn func(H) (*Result, error)) (*Result, error) {
	defer func() { _ = closeFn() }()

	h, err := open()
	if err != nil {
		return nil, errUnavailable(unavailable, err)
	}
	if any(h) == nil {
		return nil, errUnavailable(unavailable, engine.ErrNoAccess)
	}
	return fn(h)
}
