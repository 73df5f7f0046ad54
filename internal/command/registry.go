package command

// Canonical robot commands. The actuator interprets these strings as opaque
// keys; any rewording is undefined behavior on its side, so membership is
// exact, case-sensitive string equality with no normalization.
const (
	OpenCabinet    = "Open the left cabinet door"
	CloseCabinet   = "Close the left cabinet door"
	RemoveLid      = "Take off the lid from the gray recipient and place it on the counter"
	ReplaceLid     = "Pick up the lid from the counter and put it on the gray recipient"
	PlacePineapple = "Pick up the green pineapple from the left cabinet and place it in the gray recipient"
	AddSalt        = "Put salt in the gray recipient"
)

// Registry is the immutable whitelist of action strings the actuator can
// execute. Extending it is a configuration change, not a runtime one.
type Registry struct {
	members map[string]struct{}
	ordered []string
}

// NewRegistry builds a registry from an explicit command list.
func NewRegistry(commands []string) *Registry {
	r := &Registry{
		members: make(map[string]struct{}, len(commands)),
	}
	for _, c := range commands {
		if _, dup := r.members[c]; dup {
			continue
		}
		r.members[c] = struct{}{}
		r.ordered = append(r.ordered, c)
	}
	return r
}

// Default returns the registry for the kitchen deployment.
func Default() *Registry {
	return NewRegistry([]string{
		OpenCabinet,
		CloseCabinet,
		RemoveLid,
		ReplaceLid,
		PlacePineapple,
		AddSalt,
	})
}

// IsValid reports whether s is exactly one of the canonical commands.
func (r *Registry) IsValid(s string) bool {
	_, ok := r.members[s]
	return ok
}

// Commands returns the canonical command list in registration order.
func (r *Registry) Commands() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}
