// Package session provides in-process conversation memory.
//
// Histories live only in memory by design: a process restart loses them,
// and the durable record of every exchange lives in the chat log sink.
// Session count is bounded by concurrent users, so the store sweeps expired
// entries inline on every write instead of running a background reaper.
package session

import "time"

// Turn is one user question paired with its assistant answer.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// record holds the mutable state of one session.
type record struct {
	turns       []Turn
	lastTouched time.Time
}
