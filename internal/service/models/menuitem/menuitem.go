package menuitem

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a menu item id does not exist.
var ErrNotFound = errors.New("menu item not found")

// Category is the closed set of menu categories.
type Category int

const (
	CategoryStarter Category = iota + 1
	CategoryMain
	CategoryDessert
	CategoryDrink
)

var categoryLabels = map[Category]string{
	CategoryStarter: "Entrées",
	CategoryMain:    "Plats",
	CategoryDessert: "Desserts",
	CategoryDrink:   "Boissons",
}

// Label returns the display label for the category.
func (c Category) Label() string {
	return categoryLabels[c]
}

// ParseCategory validates a category id coming off the wire.
func ParseCategory(id int) (Category, error) {
	c := Category(id)
	if _, ok := categoryLabels[c]; !ok {
		return 0, fmt.Errorf("unknown menu category %d", id)
	}
	return c, nil
}

// MenuItem is read-mostly reference data used to resolve order lines at
// creation time.
type MenuItem struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	PriceCents  int64    `json:"priceCents"`
	Category    Category `json:"categoryId"`
	IsAvailable bool     `json:"isAvailable"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}
