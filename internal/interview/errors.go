package interview

import "errors"

// ErrStateInconsistency: the session's current topic does not resolve in the
// supplied topic graph. Fatal for the request, never retried; it signals
// caller misuse rather than transient noise.
var ErrStateInconsistency = errors.New("session state inconsistent with topic graph")
