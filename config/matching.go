package config

import (
	"os"
	"strconv"
	"time"
)

// Matching modes. In cosine mode stored embeddings are compared directly; in
// oracle mode image pairs are sent to the external face-comparison service
// and its boolean answer is mapped to a fixed confidence.
const (
	MatchModeCosine = "cosine"
	MatchModeOracle = "oracle"
)

type MatchingConfig struct {
	Mode string

	// Threshold is on the 0-100 confidence scale in both modes. The cosine
	// default of 70 corresponds to a rescaled-cosine score of 0.7, which
	// accepts raw cosine >= 0.4. That is lenient by design of the original
	// pipeline; tune here, not in the engine.
	Threshold  float64
	MaxResults int

	// Oracle boolean -> confidence mapping.
	OracleMatchConfidence   float64
	OracleNoMatchConfidence float64

	FaceAPIURL     string
	FaceAPITimeout time.Duration

	DownloadTimeout time.Duration
}

func GetMatchingConfig() *MatchingConfig {
	cfg := &MatchingConfig{
		Mode:                    MatchModeCosine,
		Threshold:               70,
		MaxResults:              50,
		OracleMatchConfidence:   95,
		OracleNoMatchConfidence: 30,
		FaceAPIURL:              os.Getenv("FACE_API_URL"),
		FaceAPITimeout:          30 * time.Second,
		DownloadTimeout:         15 * time.Second,
	}

	if mode := os.Getenv("MATCH_MODE"); mode == MatchModeOracle {
		cfg.Mode = MatchModeOracle
		cfg.Threshold = 85
	}
	if v := os.Getenv("MATCH_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t >= 0 && t <= 100 {
			cfg.Threshold = t
		}
	}
	if v := os.Getenv("MATCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxResults = n
		}
	}
	if v := os.Getenv("FACE_API_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.FaceAPITimeout = time.Duration(secs) * time.Second
		}
	}

	return cfg
}
