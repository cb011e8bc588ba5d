// Package ril owns the shared vocabulary of the radio interface transport.
//
// Ownership boundary:
// - message kinds carried in every inbound payload
// - command and event codes the transport itself depends on
// - reply/event/result shapes handed to callers
// - caller-visible error kinds
package ril
