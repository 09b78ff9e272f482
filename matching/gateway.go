package matching

import (
	"errors"

	"github.com/reunite-app/api-go/models"
	"gorm.io/gorm"
)

// Gateway persists match records, keeping at most one row per unordered
// report pair. Callers pass the canonical ordering (missing report first).
type Gateway struct {
	DB *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{DB: db}
}

// Upsert looks up the match for (missingReportID, foundReportID) and either
// refreshes its confidence or creates it. New rows are created directly as
// MATCHED since they already cleared the threshold. REJECTED and CLOSED are
// admin-owned terminal states: re-evaluation updates their confidence but
// never resurrects the status. The returned bool is true for a fresh insert.
//
// The lookup-then-write is not race-free under concurrent resolver runs for
// the same report; a racing duplicate is rare and gets overwritten on the
// next run, which the callers accept.
func (g *Gateway) Upsert(missingReportID, foundReportID uint, confidence float64) (*models.Match, bool, error) {
	var match models.Match
	err := g.DB.Where("missing_report_id = ? AND found_report_id = ?", missingReportID, foundReportID).
		First(&match).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
		match = models.Match{
			MissingReportID:  missingReportID,
			FoundReportID:    foundReportID,
			Confidence:       confidence,
			Status:           models.MatchStatusMatched,
			NotificationSent: false,
		}
		if err := g.DB.Create(&match).Error; err != nil {
			return nil, false, err
		}
		return &match, true, nil
	}

	match.Confidence = confidence
	if !match.Terminal() {
		match.Status = models.MatchStatusMatched
	}
	if err := g.DB.Save(&match).Error; err != nil {
		return nil, false, err
	}
	return &match, false, nil
}

// MarkNotified records that match-found events were dispatched for a match.
func (g *Gateway) MarkNotified(matchID uint) error {
	return g.DB.Model(&models.Match{}).Where("id = ?", matchID).
		Update("notification_sent", true).Error
}
