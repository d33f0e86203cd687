// Package stubtest runs an in-process stand-in for a deployed stub.
//
// Server decodes requests with a codec.Profile, feeds the command to a
// scripted pseudo-shell and disguises the output the same way a real stub
// does. Every request starts a fresh shell process, so nothing but the
// filesystem survives between requests. Server records each execution so
// tests can assert that a command ran to completion even after the client
// gave up waiting.
package stubtest
