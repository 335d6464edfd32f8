package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Evidence kinds
const (
	EvidenceKindText = "text"
	EvidenceKindFile = "file"
)

// Evidence is one required artifact for a dispute. Artifacts are shared
// across duplicate disputes on the same receipt (many-to-many).
type Evidence struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Kind         string `gorm:"not null"`
	EvidenceType string `gorm:"not null;index"`
	Text         *string
	FileRef      *string

	Disputes []Dispute `gorm:"many2many:dispute_evidences;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *Evidence) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Provided reports whether the evidence value has been filled in.
func (e *Evidence) Provided() bool {
	if e.Kind == EvidenceKindFile {
		return e.FileRef != nil && *e.FileRef != ""
	}
	return e.Text != nil && *e.Text != ""
}

// Value returns the submittable value for the evidence bundle.
func (e *Evidence) Value() string {
	if e.Kind == EvidenceKindFile {
		if e.FileRef != nil {
			return *e.FileRef
		}
		return ""
	}
	if e.Text != nil {
		return *e.Text
	}
	return ""
}
