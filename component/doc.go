// Package component defines the block framework for blockstream: the Block
// interface used for discovery, the Activatable lifecycle, the Worker work
// cycle contract, typed stream ports with produce/consume accounting, the
// block factory registry, and configuration validation helpers.
//
// # Block Model
//
// A block is a unit of stream processing driven by the engine's scheduler.
// Blocks expose three orthogonal capabilities:
//
//   - Block: metadata, port descriptions, config schema, health (discovery)
//   - Activatable: Activate/Deactivate resource lifecycle
//   - Worker: Work, invoked once per scheduler cycle with a wait budget
//
// A Work call must return within the cycle's budget. Returning WorkYield
// signals "no progress this cycle" and is the normal backpressure path,
// never an error.
//
// # Ports
//
// Static Port values describe a block's I/O surface for discovery and
// validation. At runtime the engine allocates a Stream per connection and
// binds an OutputPort to the upstream block and an InputPort to the
// downstream block. OutputPort hands the block a writable byte region each
// cycle; Produce commits a prefix of that region as whole elements.
// Partial trailing elements are never emitted.
package component
