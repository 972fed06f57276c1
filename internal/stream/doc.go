// Package stream follows job execution over the server's WebSocket progress
// channel.
//
// Conn wraps the socket and yields raw Frames. Decode turns a frame into an
// Event. Session is the state machine that decides when a tracked run is
// over, and Tracker drives the receive loop, honouring a CancelFlag set by
// another goroutine (typically the key listener).
//
// A session ends when the most recent executing event had no node and the
// most recent status event reported an empty queue, whichever of the two
// arrives last. Binary frames are previews; by default the first one ends
// the session.
package stream
