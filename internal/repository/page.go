// internal/repository/page.go
package repository

import "gorm.io/gorm"

// Page selects rows Size at a time. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Size)
}
