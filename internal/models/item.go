package models

// CatalogItem is a normalized Pokemon as shown in discovery and kept in a collection.
// The JSON shape is also the persisted collection format.
type CatalogItem struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Image      string   `json:"image"`
	Categories []string `json:"types"` // Type names in upstream order
	Metrics    Metrics  `json:"stats"`
}

// Metrics holds the three base stats the card displays
type Metrics struct {
	Primary int `json:"hp"`
	Offense int `json:"attack"`
	Defense int `json:"defense"`
}

// ItemList is a list of items with its total
type ItemList struct {
	Items      []CatalogItem `json:"items"`
	TotalCount int           `json:"total_count"`
}

// Page is one resolved slice of the catalog
type Page struct {
	Items   []CatalogItem `json:"items"`
	HasMore bool          `json:"has_more"`
	Total   int           `json:"total"`
}
