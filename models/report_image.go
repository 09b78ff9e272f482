package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// FeatureVector is an image embedding stored as a JSON array so the same
// column type works on postgres and the sqlite test driver. An empty vector
// means the image has not been processed yet.
type FeatureVector []float64

func (v FeatureVector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *FeatureVector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var data []byte
	switch src := value.(type) {
	case []byte:
		data = src
	case string:
		data = []byte(src)
	default:
		return errors.New("unsupported feature vector source type")
	}
	if len(data) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, (*[]float64)(v))
}

// ReportImage is a photograph attached to a report. The embedding is written
// by the feature extraction job; re-processing overwrites it.
type ReportImage struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	ReportID uint   `gorm:"not null;index" json:"report_id"`
	Report   Report `gorm:"foreignKey:ReportID" json:"-"`

	URL      string `gorm:"not null" json:"url"`
	FileName string `gorm:"size:255" json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `gorm:"size:100" json:"mime_type"`

	Embedding   FeatureVector `gorm:"type:text" json:"embedding"`
	ProcessedAt *time.Time    `json:"processed_at"`
}

// Processed reports whether an embedding has been computed for this image.
func (i *ReportImage) Processed() bool {
	return len(i.Embedding) > 0
}
