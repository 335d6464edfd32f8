package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type EvidenceRepository interface {
	CreateBatch(evidences []models.Evidence) error
	Save(evidence *models.Evidence) error
	// ResetValues clears the stored text and file values, keeping the
	// evidence rows and their dispute links.
	ResetValues(ids []string) error
}

type evidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) CreateBatch(evidences []models.Evidence) error {
	if len(evidences) == 0 {
		return nil
	}
	return r.db.Create(&evidences).Error
}

func (r *evidenceRepository) Save(evidence *models.Evidence) error {
	return r.db.Save(evidence).Error
}

func (r *evidenceRepository) ResetValues(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.Evidence{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"text": nil, "file_ref": nil}).Error
}
