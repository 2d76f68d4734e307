package domain

import "errors"

// ErrSessionNotFound is returned when a session ID has no checkpoints.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoPendingInterrupt is returned when a resume is attempted against a
// session whose latest checkpoint has no pending interrupt.
var ErrNoPendingInterrupt = errors.New("no pending interrupt")

// ErrInvalidResume is returned when a resume payload does not match the shape
// expected by the interrupt site. The session is left unchanged.
var ErrInvalidResume = errors.New("invalid resume payload")

// ErrCheckpointConflict is returned when an appended checkpoint does not
// follow the session's latest sequence number. It is how a lost resume race
// surfaces: the checkpoint advances exactly once per pause point.
var ErrCheckpointConflict = errors.New("checkpoint sequence conflict")

// ErrCheckpointCorrupt is returned when a stored checkpoint cannot be
// decoded. Fatal for that session only.
var ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

// ErrSessionPaused is returned when a new query is submitted to a session
// that is waiting on an interrupt.
var ErrSessionPaused = errors.New("session has a pending interrupt")

// ErrResourceExhausted marks a transient rate-limit failure from a
// collaborator. Callers retry with bounded exponential backoff before
// degrading.
var ErrResourceExhausted = errors.New("resource exhausted")

// ErrNotFound is returned by collaborators when a looked-up record does not
// exist.
var ErrNotFound = errors.New("not found")
