// internal/models/book.go
package models

import "gorm.io/gorm"

// Book is read-only for the borrowing workflow. A soft-deleted book can no
// longer be requested or approved.
type Book struct {
	BaseModel
	Title         string         `json:"title" gorm:"size:255;not null"`
	Author        string         `json:"author" gorm:"size:255"`
	ISBN          string         `json:"isbn" gorm:"size:20;index"`
	TotalQuantity int            `json:"total_quantity" gorm:"not null;default:0"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

func (b *Book) IsDeleted() bool {
	return b.DeletedAt.Valid
}
