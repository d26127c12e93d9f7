package domain

import "time"

// Category groups listings. Categories are managed by staff and cannot be
// deleted while listings reference them.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultCategoryNames are the categories seeded into a fresh database.
var DefaultCategoryNames = []string{
	"Textbooks",
	"Electronics",
	"Furniture",
	"Clothing",
	"Sports Equipment",
	"Musical Instruments",
	"Kitchen Appliances",
	"Stationery",
	"Bicycles",
	"Other",
}
