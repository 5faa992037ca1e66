package catalog

type Branding struct {
	Emoji       string `json:"emoji"`
	Color       int    `json:"color"`
	Description string `json:"description"`
}

var chainBranding = map[string]Branding{
	"Target":     {"🎯", 0xCC0000, "Department Store"},
	"Walmart":    {"🏪", 0x0071CE, "Superstore"},
	"Best Buy":   {"🔌", 0x003F7F, "Electronics Store"},
	"BJs":        {"🛒", 0xFF6B35, "Wholesale Club"},
	"Costco":     {"🏬", 0x004B87, "Warehouse Club"},
	"Home Depot": {"🔨", 0xFF6600, "Home Improvement"},
	"Lowes":      {"🏠", 0x004990, "Home Improvement"},
	"CVS":        {"💊", 0xCC0000, "Pharmacy"},
	"Walgreens":  {"⚕️", 0x0089CF, "Pharmacy"},
	"Starbucks":  {"☕", 0x00704A, "Coffee Shop"},
	"Dunkin":     {"🍩", 0xFF6600, "Coffee & Donuts"},
}

var categoryEmoji = map[string]string{
	"Department": "🏬", "Superstore": "🏪", "Electronics": "🔌",
	"Wholesale": "🛒", "Hardware": "🔨", "Pharmacy": "💊",
	"Grocery": "🥬", "Coffee": "☕", "Fast Food": "🍟",
	"Gas": "⛽", "Banking": "🏦", "Auto": "🚗",
}

var categoryColor = map[string]int{
	"Department": 0x7289DA, "Superstore": 0x5865F2, "Electronics": 0x3498DB,
	"Wholesale": 0x9B59B6, "Hardware": 0xE67E22, "Pharmacy": 0xE74C3C,
	"Grocery": 0x2ECC71, "Coffee": 0x8B4513, "Fast Food": 0xF39C12,
	"Gas": 0xF1C40F, "Banking": 0x34495E, "Auto": 0x95A5A6,
}

const (
	colorExceptional = 0xFFD700
	colorGood        = 0x32CD32
	colorPoor        = 0xFF6B6B
)

// BrandingFor returns display metadata for a chain, falling back to the category,
// with the colour overridden by quality score bands.
func BrandingFor(chain, category string, quality float64) Branding {
	b, ok := chainBranding[chain]
	if !ok {
		b = Branding{Emoji: "🏢", Color: 0x7289DA, Description: "Store"}
		if e, ok := categoryEmoji[category]; ok {
			b.Emoji = e
		}
		if c, ok := categoryColor[category]; ok {
			b.Color = c
		}
		if category != "" {
			b.Description = category + " Store"
		}
	}
	switch {
	case quality >= 8:
		b.Color = colorExceptional
	case quality >= 6:
		b.Color = colorGood
	case quality < 3:
		b.Color = colorPoor
	}
	return b
}
