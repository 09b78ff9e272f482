package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reunite-app/api-go/models"
	"gorm.io/gorm"
)

// Processor runs the extractor over stored report images and persists the
// resulting vectors. A zero extraction result (every path failed, download
// included) is treated as a failure and the image stays unprocessed, so a
// transient network problem does not pin an uncomparable vector forever.
type Processor struct {
	DB        *gorm.DB
	Extractor *Extractor
}

func NewProcessor(db *gorm.DB, extractor *Extractor) *Processor {
	return &Processor{DB: db, Extractor: extractor}
}

// ProcessImage computes and stores the embedding for one image,
// overwriting any previous vector.
func (p *Processor) ProcessImage(ctx context.Context, imageID uint) error {
	var img models.ReportImage
	if err := p.DB.First(&img, imageID).Error; err != nil {
		return fmt.Errorf("load image %d: %w", imageID, err)
	}

	vec := p.Extractor.Extract(ctx, img.URL)
	usable := false
	for _, v := range vec {
		if v != 0 {
			usable = true
			break
		}
	}
	if !usable {
		return fmt.Errorf("image %d: no usable features extracted", imageID)
	}

	now := time.Now()
	return p.DB.Model(&img).Updates(map[string]interface{}{
		"embedding":    vec,
		"processed_at": &now,
	}).Error
}

// ProcessReportImages computes embeddings for every unprocessed image of a
// report. A failure persisting one image does not stop the rest.
func (p *Processor) ProcessReportImages(ctx context.Context, reportID uint) error {
	var images []models.ReportImage
	if err := p.DB.Where("report_id = ?", reportID).Find(&images).Error; err != nil {
		return fmt.Errorf("load images for report %d: %w", reportID, err)
	}

	var failed int
	for i := range images {
		if images[i].Processed() {
			continue
		}
		if err := p.ProcessImage(ctx, images[i].ID); err != nil {
			log.Printf("processor: image %d failed: %v", images[i].ID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("processing report %d: %d image(s) failed", reportID, failed)
	}
	return nil
}
