package models

// Category classifies requests (roads, lighting, landscaping, ...).
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
