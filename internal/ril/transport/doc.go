// Package transport carries typed commands to the modem daemon and routes its
// replies and events back.
//
// Ownership boundary:
// - connection lifecycle: connect, retry, teardown, bulk failure on loss
// - sender loop: the only writer on the socket
// - receiver loop: the only reader on the socket, classification and dispatch
// - ack sub-protocol, gated on the daemon's advertised version
// - blocking-call fallbacks for commands the daemon may never answer
//
// Exactly two long-lived goroutines run per Transport: the sender drains the
// outbox, the receiver connects and reads. Callers only ever enqueue.
package transport
