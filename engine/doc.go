// Package engine defines the contract between the call-session controller
// and the native audio/video engine that performs codec negotiation,
// packetization, encryption, and NAT traversal.
//
// The engine itself is a provided dependency: this package contains only
// the types and signatures the controller programs against, never an
// implementation. A scriptable stub for tests lives in engine/enginetest.
//
// Result codes returned by engine operations implement the error interface
// so they can be surfaced to callers unchanged; the zero value of every
// code type means success and is never returned as a non-nil error.
package engine
