// Package session provides per-session mutual exclusion. The engine wraps
// every run and resume in the session's lock, which is what makes state
// mutation within a session race-free by construction. An optional
// DistributedLocker extends the guarantee across process replicas.
package session
