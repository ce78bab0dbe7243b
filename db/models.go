package db

import (
	"time"

	"gorm.io/gorm"
)

// CategoryRecord is one category row; Position keeps collection order.
type CategoryRecord struct {
	ID         uint `gorm:"primaryKey"`
	Position   int  `gorm:"index"`
	Name       string
	ShowExport bool
	Mods       []ModRecord `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// ModRecord is one mod in a category.
type ModRecord struct {
	ID         uint   `gorm:"primaryKey"`
	CategoryID uint   `gorm:"index"`
	Position   int
	Slug       string `gorm:"uniqueIndex"`
	Title      string
	IconURL    string
	ClientSide string
	ServerSide string
	Checked    bool
	Checking   bool
	Versions   map[string]bool `gorm:"serializer:json"`
}

// TargetVersionRecord is one entry of the target version set.
type TargetVersionRecord struct {
	ID       uint `gorm:"primaryKey"`
	Position int
	Version  string
}

// CollectionState marks that a collection has been saved at least once, so
// an emptied collection is not replaced by the seed on the next load.
type CollectionState struct {
	ID      uint `gorm:"primaryKey"`
	SavedAt time.Time
}

// CollectionSnapshot holds the JSON of the collection as it was before a save.
type CollectionSnapshot struct {
	gorm.Model
	Payload    string
	Categories int
	Mods       int
}
