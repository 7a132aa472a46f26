package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed ledger event.
type EventRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence    uint64    `gorm:"uniqueIndex"`
	Fingerprint string    `gorm:"size:64;uniqueIndex"`
	Type        string    `gorm:"size:64;index"`
	AssetID     uint64    `gorm:"index"`
	Account     string    `gorm:"size:96;index"`
	Attributes  string
	CreatedAt   time.Time
}

// TableName pins the table name across drivers.
func (EventRecord) TableName() string { return "paco_events" }

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
