package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

// Submission is one captured form payload. It is never updated.
type Submission struct {
	ID        int            `json:"id" gorm:"primaryKey;autoIncrement"`
	PublicID  uuid.UUID      `json:"public_id" gorm:"type:uuid;uniqueIndex;not null"`
	FormID    int            `json:"form_id" gorm:"not null;index"`
	SiteID    int            `json:"site_id" gorm:"not null;index"`
	Data      datatypes.JSON `json:"data" gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`

	Form Form `json:"-" gorm:"foreignKey:FormID"`
}

// TableName specifies the table name for Submission
func (Submission) TableName() string {
	return "submissions"
}

// Fields decodes the stored field bag
func (s *Submission) Fields() (routing.Fields, error) {
	var fields routing.Fields
	if len(s.Data) == 0 {
		return fields, nil
	}
	if err := fields.UnmarshalJSON(s.Data); err != nil {
		return nil, err
	}
	return fields, nil
}

// NewSubmission builds a submission for the given form from a field bag
func NewSubmission(form *Form, fields routing.Fields) (*Submission, error) {
	data, err := fields.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return &Submission{
		PublicID: uuid.New(),
		FormID:   form.ID,
		SiteID:   form.SiteID,
		Data:     datatypes.JSON(data),
	}, nil
}
