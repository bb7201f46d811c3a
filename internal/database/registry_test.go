package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFromConfig(t *testing.T) {
	registry, err := RegistryFromConfig([]ConnectionConfig{
		{Name: "primary", Driver: "mysql", Database: "app"},
		{Name: "Reports", Driver: "mysql", Database: "reports"},
		{Name: "analytics", Driver: "pgsql", Database: "dw"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, registry.Len())
	assert.Equal(t, []string{"primary", "Reports", "analytics"}, registry.Identifiers())

	conn, ok := registry.Lookup("Reports")
	require.True(t, ok)
	assert.Equal(t, "reports", conn.Database())

	_, ok = registry.Lookup("reports")
	assert.False(t, ok, "lookup is case-sensitive")

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "analytics", all[2].Identifier())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := RegistryFromConfig([]ConnectionConfig{
		{Name: "primary", Driver: "mysql"},
		{Name: "primary", Driver: "pgsql"},
	})
	assert.Error(t, err)

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

func TestRegistryPropagatesEntryErrors(t *testing.T) {
	_, err := RegistryFromConfig([]ConnectionConfig{{Driver: "mysql"}})
	assert.Error(t, err)
}

func TestNilRegistry(t *testing.T) {
	var registry *Registry

	_, ok := registry.Lookup("x")
	assert.False(t, ok)
	assert.Empty(t, registry.All())
	assert.Empty(t, registry.Identifiers())
	assert.Equal(t, 0, registry.Len())
}

func TestEmptyRegistry(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, registry.All())
}
