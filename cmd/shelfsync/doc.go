// Package main hosts the shelfsync CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into sync requests,
// resolves webhook payloads into requests, and exposes configuration and
// schema utilities. Construction of the engine lives in internal/wiring so
// the commands here stay declarative.
package main
