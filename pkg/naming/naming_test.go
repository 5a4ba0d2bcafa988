package naming_test

import (
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafe(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"a.b-tool", "a_b_tool"},
		{"already_safe", "already_safe"},
		{"with spaces and:punct!", "with_spaces_and_punct_"},
		{"123start", "tool_123start"},
		{"", "unnamed_tool"},
		{"---", "___"},
		{"ünïcode", "_n_code"},
		{"CamelCase9", "CamelCase9"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, naming.Safe(c.raw), "raw=%q", c.raw)
	}
}

func TestSafe_Properties(t *testing.T) {
	inputs := []string{"a.b", "9lives", "", "x y z", "Ω", "tool/one", "tool.one", "a-b_c.d"}
	for _, raw := range inputs {
		got := naming.Safe(raw)

		// Deterministic
		assert.Equal(t, got, naming.Safe(raw))

		// Never empty, never digit-leading
		require.NotEmpty(t, got)
		assert.False(t, got[0] >= '0' && got[0] <= '9', "got=%q", got)

		// Only [A-Za-z0-9_]
		for _, r := range got {
			valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
			assert.True(t, valid, "char %q in %q", r, got)
		}
	}
}

func TestNewTable(t *testing.T) {
	catalog := domain.Catalog{
		{Name: "a.b-tool"},
		{Name: "notes/search"},
	}
	table, err := naming.NewTable(catalog)
	require.NoError(t, err)

	safe, ok := table.SafeName("a.b-tool")
	require.True(t, ok)
	assert.Equal(t, "a_b_tool", safe)

	raw, ok := table.RawName("notes_search")
	require.True(t, ok)
	assert.Equal(t, "notes/search", raw)

	assert.Equal(t, []string{"a_b_tool", "notes_search"}, table.SafeNames())
	assert.True(t, table.Has("a_b_tool"))
	assert.False(t, table.Has("missing"))
	assert.Equal(t, 2, table.Len())
}

func TestNewTable_Collision(t *testing.T) {
	// Two distinct raw names collapsing to the same identifier must be
	// rejected before stub generation, not resolved last-write-wins.
	catalog := domain.Catalog{
		{Name: "a.b"},
		{Name: "a-b"},
	}
	_, err := naming.NewTable(catalog)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIdentifierCollision)
}

func TestNewTable_DuplicateDescriptor(t *testing.T) {
	catalog := domain.Catalog{
		{Name: "same"},
		{Name: "same"},
	}
	table, err := naming.NewTable(catalog)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}
