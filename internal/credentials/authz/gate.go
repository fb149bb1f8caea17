package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the actor carried no recognisable role.
	ErrUnauthenticated = errors.New("authz: actor role missing or unrecognised")
	// ErrInvalidRole means the requested target role is not in the hierarchy.
	ErrInvalidRole = errors.New("authz: invalid target role")
	// ErrInsufficientPrivilege means the actor is recognised but outranked.
	ErrInsufficientPrivilege = errors.New("authz: insufficient privilege")
)

// Gate answers authorization questions against a fixed Hierarchy. It holds no
// mutable state and is safe for concurrent use.
type Gate struct {
	h *Hierarchy
}

// NewGate builds a Gate over h. A nil h means DefaultHierarchy.
func NewGate(h *Hierarchy) *Gate {
	if h == nil {
		h = DefaultHierarchy()
	}
	return &Gate{h: h}
}

// Hierarchy returns the table the gate decides against.
func (g *Gate) Hierarchy() *Hierarchy { return g.h }

// CanActOn reports whether actor ranks at or above target. Unknown roles on
// either side deny.
func (g *Gate) CanActOn(actor, target any) bool {
	return g.AuthorizeTarget(actor, target) == nil
}

// MeetsMinimum reports whether actor holds at least minimum.
func (g *Gate) MeetsMinimum(actor, minimum any) bool {
	return g.RequireMinimum(actor, minimum) == nil
}

// AuthorizeTarget is CanActOn with a classified error.
func (g *Gate) AuthorizeTarget(actor, target any) error {
	a := g.h.Rank(actor)
	if a == Undefined {
		return ErrUnauthenticated
	}
	t := g.h.Rank(target)
	if t == Undefined {
		return fmt.Errorf("%w: %v", ErrInvalidRole, target)
	}
	if a < t {
		return fmt.Errorf("%w: %s cannot act on %s", ErrInsufficientPrivilege, g.h.Name(a), g.h.Name(t))
	}
	return nil
}

// RequireMinimum is MeetsMinimum with a classified error.
func (g *Gate) RequireMinimum(actor, minimum any) error {
	a := g.h.Rank(actor)
	if a == Undefined {
		return ErrUnauthenticated
	}
	m := g.h.Rank(minimum)
	if m == Undefined {
		return fmt.Errorf("%w: %v", ErrInvalidRole, minimum)
	}
	if a < m {
		return fmt.Errorf("%w: %s is below %s", ErrInsufficientPrivilege, g.h.Name(a), g.h.Name(m))
	}
	return nil
}
