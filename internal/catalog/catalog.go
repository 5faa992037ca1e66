// Package catalog holds the static registry of store chains searched for.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"storefinder/internal/domain"
)

// DefaultPlaceType is sent with every nearby search unless an entry names its own type.
const DefaultPlaceType = "establishment"

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	entries []domain.CatalogEntry
}

// New validates entries and orders them by priority, keeping declaration order within a tier.
func New(entries []domain.CatalogEntry) (*Catalog, error) {
	out := make([]domain.CatalogEntry, 0, len(entries))
	for i, e := range entries {
		e.Query = strings.TrimSpace(e.Query)
		if e.Query == "" {
			return nil, fmt.Errorf("catalog entry %d: query is required", i)
		}
		if e.Priority < 1 {
			return nil, fmt.Errorf("catalog entry %q: priority must be >= 1, got %d", e.Query, e.Priority)
		}
		if e.Chain == "" {
			e.Chain = e.Query
		}
		e.PlaceType = strings.TrimSpace(e.PlaceType)
		if e.PlaceType == "" {
			e.PlaceType = DefaultPlaceType
		}
		terms := make([]string, 0, len(e.SearchTerms))
		for _, t := range e.SearchTerms {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) == 0 {
			terms = []string{e.Query}
		}
		e.SearchTerms = terms
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return &Catalog{entries: out}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultEntries)
	if err != nil {
		panic(err) // built-in table is static
	}
	return c
}

// LoadFile reads a YAML/JSON catalog with a top-level "stores" list.
func LoadFile(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var file struct {
		Stores []domain.CatalogEntry `mapstructure:"stores"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(file.Stores) == 0 {
		return nil, fmt.Errorf("catalog %s: no stores defined", path)
	}
	return New(file.Stores)
}

// Entries returns entries filtered by category (case-insensitive exact match).
// An empty category returns everything. The result is a copy.
func (c *Catalog) Entries(category string) []domain.CatalogEntry {
	category = strings.TrimSpace(category)
	out := make([]domain.CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		e.SearchTerms = append([]string(nil), e.SearchTerms...)
		out = append(out, e)
	}
	return out
}

// Tiers groups Entries(category) by ascending priority.
func (c *Catalog) Tiers(category string) [][]domain.CatalogEntry {
	var tiers [][]domain.CatalogEntry
	for _, e := range c.Entries(category) {
		n := len(tiers)
		if n == 0 || tiers[n-1][0].Priority != e.Priority {
			tiers = append(tiers, []domain.CatalogEntry{e})
			continue
		}
		tiers[n-1] = append(tiers[n-1], e)
	}
	return tiers
}

// Categories lists distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range c.entries {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

var defaultEntries = []domain.CatalogEntry{
	{Query: "Target", Chain: "Target", Icon: "🎯", Category: "Department", Priority: 1,
		SearchTerms: []string{"Target", "Target Store", "Target Corporation", "Target Superstore"}},
	{Query: "Walmart", Chain: "Walmart", Icon: "🏪", Category: "Superstore", Priority: 1,
		SearchTerms: []string{"Walmart", "Walmart Supercenter"}},
	{Query: "BJ's Wholesale Club", Chain: "BJs", Icon: "🛒", Category: "Wholesale", Priority: 1,
		SearchTerms: []string{"BJ's", "BJs", "BJ's Wholesale"}},
	{Query: "Best Buy", Chain: "Best Buy", Icon: "🔌", Category: "Electronics", Priority: 1,
		SearchTerms: []string{"Best Buy", "BestBuy"}},

	{Query: "Costco", Chain: "Costco", Icon: "🏬", Category: "Wholesale", Priority: 2,
		SearchTerms: []string{"Costco", "Costco Wholesale"}},
	{Query: "Home Depot", Chain: "Home Depot", Icon: "🔨", Category: "Hardware", Priority: 2,
		SearchTerms: []string{"The Home Depot", "Home Depot"}},
	{Query: "Lowe's", Chain: "Lowes", Icon: "🏠", Category: "Hardware", Priority: 2,
		SearchTerms: []string{"Lowe's Home Improvement", "Lowe's", "Lowes"}},

	{Query: "CVS", Chain: "CVS", Icon: "💊", Category: "Pharmacy", Priority: 3,
		SearchTerms: []string{"CVS Pharmacy", "CVS"}},
	{Query: "Walgreens", Chain: "Walgreens", Icon: "⚕️", Category: "Pharmacy", Priority: 3,
		SearchTerms: []string{"Walgreens", "Walgreens Pharmacy"}},
	{Query: "Starbucks", Chain: "Starbucks", Icon: "☕", Category: "Coffee", Priority: 3,
		SearchTerms: []string{"Starbucks", "Starbucks Coffee"}},
	{Query: "Dunkin'", Chain: "Dunkin", Icon: "🍩", Category: "Coffee", Priority: 3,
		SearchTerms: []string{"Dunkin'", "Dunkin Donuts", "Dunkin"}},
}
