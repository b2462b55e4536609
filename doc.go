// Package blockstream provides a pull/push dataflow framework built from
// blocks connected by typed element streams.
//
// # Block Model
//
// A block is a unit of streaming work with typed ports. Sources produce
// elements from external resources (files, file descriptors), sinks
// persist them, and the engine drives every block through a cooperative
// work cycle: bounded-wait for resource readiness, at most one transfer,
// whole-element commit downstream. Yielding on a timeout is normal
// backpressure, never an error.
//
// # Layout
//
//   - component: block interfaces, typed streams and ports, registry,
//     config schema generation and validation
//   - block/file: streaming file source, binary file sink, descriptor
//     adapters
//   - block/testers: constant source, feeder, collector for exercising
//     flows
//   - engine: topology wiring and the work cycle scheduler
//   - config: flow definitions in JSON or YAML
//   - metric: Prometheus registry and metrics server
//   - errors: classified error wrapping
//   - pkg/fdwait: bounded descriptor readiness waits
//   - pkg/retry: exponential backoff
//
// The blockstream binary under cmd/blockstream loads a flow definition,
// builds the topology, and runs it until signalled.
package blockstream
