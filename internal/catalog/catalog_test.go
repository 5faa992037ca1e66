package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefinder/internal/catalog"
	"storefinder/internal/domain"
)

func TestEntries_FilterByCategoryCaseInsensitive(t *testing.T) {
	c := catalog.Default()

	for _, q := range []string{"Coffee", "coffee", "COFFEE", " Coffee "} {
		got := c.Entries(q)
		require.NotEmpty(t, got, "query %q", q)
		for _, e := range got {
			assert.True(t, strings.EqualFold(e.Category, "Coffee"), "unexpected category %s", e.Category)
		}
	}
	assert.Len(t, c.Entries("Coffee"), 2)
}

func TestEntries_UnknownCategoryIsEmpty(t *testing.T) {
	assert.Empty(t, catalog.Default().Entries("Spaceships"))
}

func TestEntries_NoFilterReturnsAllAscending(t *testing.T) {
	c := catalog.Default()
	all := c.Entries("")
	require.Len(t, all, c.Len())
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Priority, all[i].Priority)
	}
	assert.Equal(t, "Target", all[0].Chain)
}

func TestEntries_ReturnsCopies(t *testing.T) {
	c := catalog.Default()
	e := c.Entries("Department")
	e[0].SearchTerms[0] = "mutated"
	assert.Equal(t, "Target", c.Entries("Department")[0].SearchTerms[0])
}

func TestTiers_GroupedAscending(t *testing.T) {
	tiers := catalog.Default().Tiers("")
	require.Len(t, tiers, 3)
	for i, tier := range tiers {
		for _, e := range tier {
			assert.Equal(t, i+1, e.Priority)
		}
	}
}

func TestNew_DefaultsAndValidation(t *testing.T) {
	c, err := catalog.New([]domain.CatalogEntry{
		{Query: "Zed", Category: "X", Priority: 2},
		{Query: "Alpha", Category: "X", Priority: 1, SearchTerms: []string{" ", "Alpha One"}},
	})
	require.NoError(t, err)
	all := c.Entries("")
	assert.Equal(t, "Alpha", all[0].Query)
	assert.Equal(t, []string{"Alpha One"}, all[0].SearchTerms)
	assert.Equal(t, []string{"Zed"}, all[1].SearchTerms)
	assert.Equal(t, "Zed", all[1].Chain)
	assert.Equal(t, catalog.DefaultPlaceType, all[1].PlaceType)

	_, err = catalog.New([]domain.CatalogEntry{{Query: "", Priority: 1}})
	assert.Error(t, err)
	_, err = catalog.New([]domain.CatalogEntry{{Query: "A", Priority: 0}})
	assert.Error(t, err)
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	yaml := `stores:
  - query: Trader Joe's
    chain: TJs
    icon: "🥬"
    category: Grocery
    priority: 1
    search_terms: ["Trader Joe's", "Trader Joes"]
  - query: Shell
    category: Gas
    priority: 2
    place_type: gas_station
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	c, err := catalog.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	g := c.Entries("grocery")
	require.Len(t, g, 1)
	assert.Equal(t, "TJs", g[0].Chain)
	assert.Equal(t, []string{"Trader Joe's", "Trader Joes"}, g[0].SearchTerms)
	assert.Equal(t, []string{"Shell"}, c.Entries("Gas")[0].SearchTerms)
	assert.Equal(t, "gas_station", c.Entries("Gas")[0].PlaceType)
	assert.Equal(t, "establishment", g[0].PlaceType)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := catalog.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBrandingFor(t *testing.T) {
	b := catalog.BrandingFor("Target", "Department", 5)
	assert.Equal(t, "🎯", b.Emoji)
	assert.Equal(t, 0xCC0000, b.Color)

	assert.Equal(t, 0xFFD700, catalog.BrandingFor("Target", "Department", 8.5).Color)
	assert.Equal(t, 0x32CD32, catalog.BrandingFor("Target", "Department", 6).Color)
	assert.Equal(t, 0xFF6B6B, catalog.BrandingFor("Target", "Department", 1).Color)

	u := catalog.BrandingFor("Corner Shop", "Grocery", 4)
	assert.Equal(t, "🥬", u.Emoji)
	assert.Equal(t, 0x2ECC71, u.Color)
	assert.Equal(t, "Grocery Store", u.Description)
}
