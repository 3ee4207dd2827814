package builder

import "errors"

// ErrConstructFailed is returned by ApplyTo/BuildGraph when a Constructor
// fails, or is called with a nil graph or a nil constructor.
var ErrConstructFailed = errors.New("builder: construction failed")
