package domain

import "fmt"

// Capability names an optional role attachment on a User.
type Capability string

const (
	CapabilityHost   Capability = "host"
	CapabilityRenter Capability = "renter"
)

func (c Capability) Valid() bool {
	return c == CapabilityHost || c == CapabilityRenter
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability maps a route segment to a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// Has reports whether the user carries the capability.
func (u *User) Has(c Capability) bool {
	if u == nil {
		return false
	}
	switch c {
	case CapabilityHost:
		return u.Host != nil
	case CapabilityRenter:
		return u.Renter != nil
	}
	return false
}

// CapabilityWatch compares capability presence between two observed states.
// Observe returns true only on an absent -> present edge, so a one-time
// effect (focusing the newly unlocked bio input) fires once per unlock and
// not on every render.
type CapabilityWatch struct {
	seen    bool
	present bool
}

// NewCapabilityWatch seeds the watch with the initially observed state.
func NewCapabilityWatch(present bool) *CapabilityWatch {
	return &CapabilityWatch{seen: true, present: present}
}

func (w *CapabilityWatch) Observe(present bool) bool {
	prev, seen := w.present, w.seen
	w.present, w.seen = present, true
	return seen && !prev && present
}

// Locked reports whether the bio field is still behind the provisioning action.
func (w *CapabilityWatch) Locked() bool {
	return !w.present
}
