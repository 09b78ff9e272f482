package matching

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/models"
	"gorm.io/gorm"
)

// ErrNoProcessableImages is returned when the source report has no images
// the configured scoring mode can work with.
var ErrNoProcessableImages = errors.New("source report has no processable images")

// Notifier is the dispatch contract. Dispatch is fire-and-forget from the
// resolver's perspective: errors are logged and never affect persistence.
type Notifier interface {
	Notify(recipientID *uint, title, message, notifType string, data map[string]interface{}) error
}

// ReportStore abstracts report loading so the resolver stays generic over
// which role is the source and which is the candidate population.
type ReportStore interface {
	LoadReport(id uint) (*models.Report, error)
	LoadCandidates(role models.ReportRole, excludeID uint) ([]models.Report, error)
}

type gormReportStore struct {
	db *gorm.DB
}

func (s *gormReportStore) LoadReport(id uint) (*models.Report, error) {
	var report models.Report
	if err := s.db.Preload("Images").First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *gormReportStore) LoadCandidates(role models.ReportRole, excludeID uint) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.Preload("Images").
		Where("role = ? AND status = ? AND id <> ?", role, models.ReportStatusActive, excludeID).
		Find(&reports).Error
	return reports, err
}

// Result is what one resolver invocation produced: the candidates accepted
// in this run (not the cumulative match history) and how many candidates
// were skipped because of per-candidate failures.
type Result struct {
	Matches []models.Match `json:"matches"`
	Skipped int            `json:"skipped"`
}

// Resolver orchestrates match finding for one source report against all
// active opposite-role reports.
type Resolver struct {
	cfg       *config.MatchingConfig
	store     ReportStore
	gateway   *Gateway
	notifier  Notifier
	extractor *Extractor
}

func NewResolver(db *gorm.DB, cfg *config.MatchingConfig, extractor *Extractor, notifier Notifier) *Resolver {
	return &Resolver{
		cfg:       cfg,
		store:     &gormReportStore{db: db},
		gateway:   NewGateway(db),
		notifier:  notifier,
		extractor: extractor,
	}
}

// FindMatches scores the source report against every active opposite-role
// report and upserts the candidates that clear the threshold (inclusive).
// A failure loading the source report is fatal; failures scoring or
// persisting a single candidate are logged, counted and skipped so the rest
// of the run completes.
func (r *Resolver) FindMatches(ctx context.Context, sourceReportID uint) (*Result, error) {
	source, err := r.store.LoadReport(sourceReportID)
	if err != nil {
		return nil, fmt.Errorf("load source report %d: %w", sourceReportID, err)
	}

	scorer, err := r.newScorer(ctx, source)
	if err != nil {
		return nil, err
	}

	candidates, err := r.store.LoadCandidates(source.Role.Opposite(), source.ID)
	if err != nil {
		return nil, fmt.Errorf("load candidate reports: %w", err)
	}

	result := &Result{}
	for i := range candidates {
		candidate := &candidates[i]
		if len(result.Matches) >= r.cfg.MaxResults {
			break
		}

		confidence, err := scorer.score(ctx, candidate)
		if err != nil {
			log.Printf("resolver: skipping candidate report %d: %v", candidate.ID, err)
			result.Skipped++
			continue
		}
		if confidence < r.cfg.Threshold {
			continue
		}

		missingID, foundID := canonicalPair(source, candidate)
		match, created, err := r.gateway.Upsert(missingID, foundID, confidence)
		if err != nil {
			log.Printf("resolver: persisting match for reports (%d,%d) failed: %v", missingID, foundID, err)
			result.Skipped++
			continue
		}

		r.notifyMatch(match, source, candidate, created)
		result.Matches = append(result.Matches, *match)
	}

	return result, nil
}

// canonicalPair orders a (source, candidate) pair so the parent-role report
// id always comes first, no matter which side triggered the search.
func canonicalPair(source, candidate *models.Report) (missingID, foundID uint) {
	if source.Role == models.RoleParent {
		return source.ID, candidate.ID
	}
	return candidate.ID, source.ID
}

// notifyMatch fans out the three match-found events: source owner, target
// owner and an admin broadcast. Failures are logged and swallowed; the
// persisted match is never rolled back over a notification problem.
func (r *Resolver) notifyMatch(match *models.Match, source, candidate *models.Report, created bool) {
	if r.notifier == nil {
		return
	}

	data := map[string]interface{}{
		"match_id":          match.ID,
		"confidence":        match.Confidence,
		"missing_report_id": match.MissingReportID,
		"found_report_id":   match.FoundReportID,
	}
	title := "Possible match found"
	message := fmt.Sprintf("A report matched yours with %.0f%% confidence.", match.Confidence)
	if !created {
		message = fmt.Sprintf("A match on your report was re-confirmed with %.0f%% confidence.", match.Confidence)
	}

	recipients := []*uint{&source.OwnerID, &candidate.OwnerID, nil} // nil recipient = admin broadcast
	delivered := 0
	for _, recipient := range recipients {
		if err := r.notifier.Notify(recipient, title, message, models.NotificationTypeMatchFound, data); err != nil {
			log.Printf("resolver: notification dispatch failed for match %d: %v", match.ID, err)
			continue
		}
		delivered++
	}

	// The flag records delivery; when every dispatch failed the next run
	// gets another chance to notify.
	if delivered == 0 {
		return
	}
	if err := r.gateway.MarkNotified(match.ID); err != nil {
		log.Printf("resolver: marking match %d notified failed: %v", match.ID, err)
	}
}
