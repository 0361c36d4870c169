package models

import "time"

// Department is read-only context for grouping and labeling feedback.
// Deactivating a department removes it from institution-wide rollups but does
// not touch its historical feedback.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
