// Package powerlock reference-counts the wake locks that keep the host awake
// while modem exchanges are outstanding.
//
// Two lock kinds exist. The request lock is counted per in-flight command and
// physically released when the count reaches zero. The ack lock is taken while
// an ack frame is on its way out and is only ever released by its own timeout
// or by Clear; per-owner releases leave it untouched.
//
// Every acquisition bumps the lock's sequence number and schedules a safety
// timeout tagged with that sequence. A timeout only releases the lock if the
// sequence still matches, so a slow timer from an earlier acquisition can
// never drop a lock that now protects newer work.
package powerlock
