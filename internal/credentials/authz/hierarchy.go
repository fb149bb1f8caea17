// Package authz ranks roles and decides whether an actor may act on a target
// role. Nothing here authenticates: callers pass role claims that an upstream
// token verifier has already validated.
package authz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Role is a rank in the hierarchy. Higher ranks carry more privilege.
type Role int

// Undefined is returned for any input the hierarchy does not recognise.
const Undefined Role = 0

const (
	User Role = iota + 1
	Moderator
	Admin
	SuperAdmin
	Owner
)

// RoleDef binds a symbolic name to a rank.
type RoleDef struct {
	Name string
	Rank Role
}

// DefaultRoles is the standard five-tier table.
func DefaultRoles() []RoleDef {
	return []RoleDef{
		{Name: "User", Rank: User},
		{Name: "Moderator", Rank: Moderator},
		{Name: "Admin", Rank: Admin},
		{Name: "SuperAdmin", Rank: SuperAdmin},
		{Name: "Owner", Rank: Owner},
	}
}

// Hierarchy is an immutable role table. Build it once at startup and share
// it; every method is safe for concurrent use.
type Hierarchy struct {
	byName map[string]Role
	names  []string // index rank-1
}

// NewHierarchy validates defs and freezes them. Ranks must be exactly 1..n
// with no gaps, and names must be unique ignoring case.
func NewHierarchy(defs []RoleDef) (*Hierarchy, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("authz: empty role table")
	}

	h := &Hierarchy{
		byName: make(map[string]Role, len(defs)),
		names:  make([]string, len(defs)),
	}
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("authz: role with rank %d has no name", d.Rank)
		}
		if d.Rank < 1 || int(d.Rank) > len(defs) {
			return nil, fmt.Errorf("authz: rank %d for %q outside 1..%d", d.Rank, name, len(defs))
		}
		if h.names[d.Rank-1] != "" {
			return nil, fmt.Errorf("authz: rank %d assigned twice", d.Rank)
		}
		key := strings.ToLower(name)
		if _, dup := h.byName[key]; dup {
			return nil, fmt.Errorf("authz: duplicate role name %q", name)
		}
		h.byName[key] = d.Rank
		h.names[d.Rank-1] = name
	}
	return h, nil
}

// DefaultHierarchy returns the standard User..Owner hierarchy.
func DefaultHierarchy() *Hierarchy {
	h, err := NewHierarchy(DefaultRoles())
	if err != nil {
		panic(err)
	}
	return h
}

// Rank normalises a role given as a number or a name.
//
// Accepted forms: any Go integer type, an integral float (how JSON numbers
// decode into interface values), a Role, a decimal string ("3"), or a
// case-insensitive name ("admin"). Everything else, including out-of-range
// numbers, yields Undefined.
func (h *Hierarchy) Rank(v any) Role {
	switch r := v.(type) {
	case nil:
		return Undefined
	case Role:
		return h.fromInt(int64(r))
	case int:
		return h.fromInt(int64(r))
	case int8:
		return h.fromInt(int64(r))
	case int16:
		return h.fromInt(int64(r))
	case int32:
		return h.fromInt(int64(r))
	case int64:
		return h.fromInt(r)
	case uint:
		return h.fromUint(uint64(r))
	case uint8:
		return h.fromUint(uint64(r))
	case uint16:
		return h.fromUint(uint64(r))
	case uint32:
		return h.fromUint(uint64(r))
	case uint64:
		return h.fromUint(r)
	case float32:
		return h.fromFloat(float64(r))
	case float64:
		return h.fromFloat(r)
	case string:
		return h.fromString(r)
	case fmt.Stringer:
		return h.fromString(r.String())
	default:
		return Undefined
	}
}

// Name returns the symbolic name for a valid rank, or "" for Undefined.
func (h *Hierarchy) Name(r Role) string {
	if !h.Valid(r) {
		return ""
	}
	return h.names[r-1]
}

// Valid reports whether r is a rank in the table.
func (h *Hierarchy) Valid(r Role) bool {
	return r >= 1 && int(r) <= len(h.names)
}

// Roles lists the table from lowest to highest rank.
func (h *Hierarchy) Roles() []RoleDef {
	out := make([]RoleDef, len(h.names))
	for i, n := range h.names {
		out[i] = RoleDef{Name: n, Rank: Role(i + 1)}
	}
	return out
}

// Highest returns the top rank.
func (h *Hierarchy) Highest() Role { return Role(len(h.names)) }

func (h *Hierarchy) fromInt(n int64) Role {
	if n < 1 || n > int64(len(h.names)) {
		return Undefined
	}
	return Role(n)
}

func (h *Hierarchy) fromUint(n uint64) Role {
	if n > uint64(len(h.names)) {
		return Undefined
	}
	return h.fromInt(int64(n)) // #nosec G115 -- bounded above
}

func (h *Hierarchy) fromFloat(f float64) Role {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Undefined
	}
	if f < 1 || f > float64(len(h.names)) {
		return Undefined
	}
	return Role(int(f))
}

func (h *Hierarchy) fromString(s string) Role {
	s = strings.TrimSpace(s)
	if s == "" {
		return Undefined
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return h.fromInt(n)
	}
	if r, ok := h.byName[strings.ToLower(s)]; ok {
		return r
	}
	return Undefined
}
