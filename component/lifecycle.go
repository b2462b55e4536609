package component

// State represents the current lifecycle state of a block's resource handle
type State int

const (
	// StateCreated indicates the block was constructed but never activated
	StateCreated State = iota
	// StateActive indicates the block holds an open resource handle
	StateActive
	// StateInactive indicates the block was deactivated and holds no handle
	StateInactive
	// StateFailed indicates the last activation attempt failed
	StateFailed
)

// String returns a string representation of the block state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Activatable defines blocks that own an external resource whose lifetime
// is bounded by activation:
//   - Activate() error    // acquire the resource; config errors returned
//   - Deactivate() error  // release the resource; idempotent
//
// Activate and Deactivate may be called from a different goroutine than
// Work; implementations must serialize handle replacement so a Work cycle
// never observes a half-applied reconfiguration.
type Activatable interface {
	Activate() error
	Deactivate() error
}

// IsActivatable checks if a block supports resource lifecycle management
func IsActivatable(b Block) bool {
	_, ok := b.(Activatable)
	return ok
}

// AsActivatable safely casts a block to Activatable
func AsActivatable(b Block) (Activatable, bool) {
	a, ok := b.(Activatable)
	return a, ok
}

// AsWorker safely casts a block to Worker
func AsWorker(b Block) (Worker, bool) {
	w, ok := b.(Worker)
	return w, ok
}
