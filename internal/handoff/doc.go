// Package handoff delivers a finalized process to whatever executes it: a
// file in one of the dump formats, or an execution engine listening on
// socket.io.
package handoff
