// Package legislation serves the curated list of recent regulatory changes
// shown on the dashboard.
package legislation

import (
	"sort"
)

type Category string

const (
	CategoryAccounting Category = "Muhasebe"
	CategoryFinance    Category = "Maliye"
	CategoryGeneral    Category = "Genel"
)

type Item struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Date     string   `json:"date"`
	URL      string   `json:"url,omitempty"`
}

// Catalog is a read-only, date-ordered set of items.
type Catalog struct {
	items []Item
}

func NewCatalog(items []Item) *Catalog {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})
	return &Catalog{items: sorted}
}

// DefaultCatalog returns the seeded items.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Item{
		{ID: 1, Title: "7524 Sayılı Vergi Kanunları Değişikliği", Category: CategoryFinance, Date: "2024-03-15"},
		{ID: 2, Title: "Enflasyon Muhasebesi Uygulama Tebliği", Category: CategoryAccounting, Date: "2024-03-10"},
		{ID: 3, Title: "KDV Oran Artışları Hakkında Karar", Category: CategoryFinance, Date: "2024-03-05"},
		{ID: 4, Title: "İş Kanunu Yeni Düzenlemeleri", Category: CategoryGeneral, Date: "2024-03-01"},
	})
}

// List returns items newest first. With priority set, general items are
// left out.
func (c *Catalog) List(priority bool) []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if priority && it.Category == CategoryGeneral {
			continue
		}
		out = append(out, it)
	}
	return out
}
