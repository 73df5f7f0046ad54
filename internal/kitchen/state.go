package kitchen

import (
	"fmt"
	"sync"
)

// ErrInvalidStateKey is returned when an update names a fact outside the
// deployment's fixed vocabulary. The orchestrator surfaces it instead of
// guessing what the oracle meant.
var ErrInvalidStateKey = fmt.Errorf("invalid kitchen state key")

// State is a mapping of fact name to value.
type State map[string]bool

// Clone returns an independent copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Snapshot is an immutable view of the store at a specific version.
type Snapshot struct {
	State   State
	Version uint64
}

// DefaultState is the kitchen's assumed starting configuration: cabinet
// closed, lid on the recipient, nothing added yet.
func DefaultState() State {
	return State{
		"cabinet_open":           false,
		"lid_on_recipient":       true,
		"pineapple_in_recipient": false,
		"salt_added":             false,
	}
}

// Store holds the versioned world model. The orchestration loop is the only
// writer; everyone else receives snapshots. Updates are atomic: either every
// key in a patch is visible or none are, and the version advances exactly
// once per successful update.
type Store struct {
	mu         sync.RWMutex
	facts      State
	version    uint64
	vocabulary map[string]struct{}
	onChange   func(Snapshot)
}

// NewStore creates a store seeded with initial facts. The initial key set
// fixes the vocabulary: later updates may only touch these keys.
func NewStore(initial State) *Store {
	s := &Store{
		facts:      initial.Clone(),
		vocabulary: make(map[string]struct{}, len(initial)),
	}
	for k := range initial {
		s.vocabulary[k] = struct{}{}
	}
	return s
}

// OnChange registers the single state-changed observer callback. The store
// does not know who listens; it only emits the post-update snapshot.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns the latest committed state and its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.facts.Clone(), Version: s.version}
}

// ValidKeys reports whether every key in patch is part of the vocabulary.
// Used to reject a plan's state effects before execution starts.
func (s *Store) ValidKeys(patch State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k := range patch {
		if _, ok := s.vocabulary[k]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStateKey, k)
		}
	}
	return nil
}

// Update applies every key in patch atomically and returns the new version.
// The version is incremented exactly once regardless of patch size. If any
// key is outside the vocabulary nothing is applied.
func (s *Store) Update(patch State) (uint64, error) {
	s.mu.Lock()
	for k := range patch {
		if _, ok := s.vocabulary[k]; !ok {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %q", ErrInvalidStateKey, k)
		}
	}
	for k, v := range patch {
		s.facts[k] = v
	}
	s.version++
	snap := Snapshot{State: s.facts.Clone(), Version: s.version}
	emit := s.onChange
	s.mu.Unlock()

	if emit != nil {
		emit(snap)
	}
	return snap.Version, nil
}

// Reset replaces all facts with initial values without changing the
// vocabulary. The version keeps increasing; observers see the reset as a
// normal state change.
func (s *Store) Reset(initial State) (uint64, error) {
	return s.Update(initial)
}
