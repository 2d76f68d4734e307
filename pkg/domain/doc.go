// Package domain contains the core entities shared by every layer: the
// conversation State and its Delta merge semantics, the closed Route
// enumeration, Checkpoints, Interrupts, and the sentinel errors of the
// engine's error taxonomy. It has no dependencies outside the standard
// library.
package domain
