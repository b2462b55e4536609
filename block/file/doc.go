// Package file provides file-backed stream blocks: a streaming file source
// that reads bytes from a path into typed output elements, a binary file
// sink that persists an element stream verbatim, and descriptor variants
// that adopt an already-open OS file descriptor.
//
// # Work Cycle Contract
//
// All blocks here are driven by the engine's cooperative scheduler. Each
// Work call waits for descriptor readiness at most for the cycle's budget
// (see pkg/fdwait), performs at most one read or write, and yields on
// timeout. A yield is normal backpressure and never logged.
//
// # Error Policy
//
// Activation with an empty path fails with a configuration error. An OS
// open failure on the source is logged with the errno detail and leaves
// the handle closed; every later work cycle re-checks validity, so an
// external reconfiguration is what retries the open. Read failures are
// logged and leave the handle open. SetFilePath on an active block
// releases the old handle before acquiring the new one and never leaves
// the block reading the old path.
package file
