package matching

import (
	"context"
	"fmt"
	"log"

	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/models"
)

// candidateScorer computes the best confidence (0-100) between the source
// report's images and one candidate's images. The two implementations are
// the configured scoring paths: stored-embedding cosine similarity and the
// external boolean compare oracle.
type candidateScorer interface {
	score(ctx context.Context, candidate *models.Report) (float64, error)
}

func (r *Resolver) newScorer(ctx context.Context, source *models.Report) (candidateScorer, error) {
	if r.cfg.Mode == config.MatchModeOracle {
		return r.newOracleScorer(ctx, source)
	}
	return newCosineScorer(source)
}

// cosineScorer compares stored feature vectors. Images without an embedding
// are skipped on both sides; a candidate with zero comparable pairs scores 0.
type cosineScorer struct {
	vectors []models.FeatureVector
}

func newCosineScorer(source *models.Report) (*cosineScorer, error) {
	s := &cosineScorer{}
	for i := range source.Images {
		if source.Images[i].Processed() {
			s.vectors = append(s.vectors, source.Images[i].Embedding)
		}
	}
	if len(s.vectors) == 0 {
		return nil, ErrNoProcessableImages
	}
	return s, nil
}

func (s *cosineScorer) score(_ context.Context, candidate *models.Report) (float64, error) {
	best := 0.0
	for i := range candidate.Images {
		if !candidate.Images[i].Processed() {
			continue
		}
		for _, src := range s.vectors {
			if score := Similarity(src, candidate.Images[i].Embedding); Confidence(score) > best {
				best = Confidence(score)
			}
		}
	}
	return best, nil
}

// oracleScorer sends raw image pairs to the face-comparison service and maps
// its yes/no answer onto the confidence scale. Source images are downloaded
// once per invocation; per-pair failures (timeouts included) fail only that
// pair, and a candidate errors out only when every pair failed.
type oracleScorer struct {
	cfg       *config.MatchingConfig
	extractor *Extractor
	source    [][]byte
}

func (r *Resolver) newOracleScorer(ctx context.Context, source *models.Report) (*oracleScorer, error) {
	s := &oracleScorer{cfg: r.cfg, extractor: r.extractor}
	for i := range source.Images {
		data, err := r.extractor.Download(ctx, source.Images[i].URL)
		if err != nil {
			log.Printf("resolver: downloading source image %d failed: %v", source.Images[i].ID, err)
			continue
		}
		s.source = append(s.source, data)
	}
	if len(s.source) == 0 {
		return nil, ErrNoProcessableImages
	}
	return s, nil
}

func (s *oracleScorer) score(ctx context.Context, candidate *models.Report) (float64, error) {
	oracle := s.extractor.FaceService()
	best := 0.0
	compared := 0
	var lastErr error
	for i := range candidate.Images {
		target, err := s.extractor.Download(ctx, candidate.Images[i].URL)
		if err != nil {
			lastErr = err
			continue
		}
		for _, src := range s.source {
			match, err := oracle.Compare(ctx, src, target)
			if err != nil {
				lastErr = err
				continue
			}
			compared++
			if match {
				// Cannot score higher; skip the remaining pairs.
				return s.cfg.OracleMatchConfidence, nil
			}
			if s.cfg.OracleNoMatchConfidence > best {
				best = s.cfg.OracleNoMatchConfidence
			}
		}
	}
	if compared == 0 {
		if lastErr != nil {
			return 0, fmt.Errorf("oracle comparison failed: %w", lastErr)
		}
		// No images on the candidate at all: scores 0, cannot match.
		return 0, nil
	}
	return best, nil
}
