package authz_test

import (
	"testing"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/stretchr/testify/require"
)

func TestRankForms(t *testing.T) {
	h := authz.DefaultHierarchy()

	tests := []struct {
		in   any
		want authz.Role
	}{
		{3, authz.Admin},
		{int64(5), authz.Owner},
		{uint8(1), authz.User},
		{float64(2), authz.Moderator},
		{"3", authz.Admin},
		{"Admin", authz.Admin},
		{"  superadmin ", authz.SuperAdmin},
		{"OWNER", authz.Owner},
		{authz.Moderator, authz.Moderator},
		{0, authz.Undefined},
		{6, authz.Undefined},
		{-1, authz.Undefined},
		{2.5, authz.Undefined},
		{"", authz.Undefined},
		{"root", authz.Undefined},
		{nil, authz.Undefined},
		{[]int{1}, authz.Undefined},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, h.Rank(tt.in), "Rank(%#v)", tt.in)
	}

	require.Equal(t, h.Rank(3), h.Rank("Admin"))
}

func TestNewHierarchyValidation(t *testing.T) {
	_, err := authz.NewHierarchy(nil)
	require.Error(t, err)

	_, err = authz.NewHierarchy([]authz.RoleDef{{Name: "a", Rank: 1}, {Name: "b", Rank: 3}})
	require.Error(t, err, "gap in ranks")

	_, err = authz.NewHierarchy([]authz.RoleDef{{Name: "a", Rank: 1}, {Name: "A", Rank: 2}})
	require.Error(t, err, "name collision")

	_, err = authz.NewHierarchy([]authz.RoleDef{{Name: "a", Rank: 1}, {Name: "b", Rank: 1}})
	require.Error(t, err, "duplicate rank")

	h, err := authz.NewHierarchy([]authz.RoleDef{{Name: "reader", Rank: 1}, {Name: "writer", Rank: 2}})
	require.NoError(t, err)
	require.Equal(t, authz.Role(2), h.Highest())
	require.Equal(t, "writer", h.Name(2))
	require.Equal(t, authz.Undefined, h.Rank("Admin"))
}

func TestCanActOn(t *testing.T) {
	g := authz.NewGate(authz.DefaultHierarchy())

	require.False(t, g.CanActOn("Admin", "SuperAdmin"))
	require.True(t, g.CanActOn("Admin", "Moderator"))
	require.False(t, g.CanActOn(authz.User, authz.Admin))

	for a := authz.User; a <= authz.Owner; a++ {
		for b := authz.User; b <= authz.Owner; b++ {
			require.Equal(t, b <= a, g.CanActOn(a, b), "%d on %d", a, b)
			require.Equal(t, a >= b, g.MeetsMinimum(a, b), "%d min %d", a, b)
		}
	}
}

func TestGateErrors(t *testing.T) {
	g := authz.NewGate(nil)

	require.ErrorIs(t, g.AuthorizeTarget(nil, "User"), authz.ErrUnauthenticated)
	require.ErrorIs(t, g.AuthorizeTarget("intern", "User"), authz.ErrUnauthenticated)
	require.ErrorIs(t, g.AuthorizeTarget("Owner", 9), authz.ErrInvalidRole)
	require.ErrorIs(t, g.AuthorizeTarget("User", "Admin"), authz.ErrInsufficientPrivilege)
	require.NoError(t, g.AuthorizeTarget(float64(5), "owner"))

	require.ErrorIs(t, g.RequireMinimum("", "Admin"), authz.ErrUnauthenticated)
	require.ErrorIs(t, g.RequireMinimum("Admin", "boss"), authz.ErrInvalidRole)
	require.ErrorIs(t, g.RequireMinimum("Moderator", "Admin"), authz.ErrInsufficientPrivilege)
	require.NoError(t, g.RequireMinimum("3", authz.Admin))
}
