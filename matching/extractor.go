package matching

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/models"
)

// EmbeddingDim is the dimensionality of every feature vector in the system,
// primary or fallback. The face service emits 128-dim embeddings; fallback
// fingerprints are padded/derived to the same length so stored vectors stay
// comparable by convention.
const EmbeddingDim = 128

const maxImageBytes = 20 << 20 // refuse downloads past 20MB

// Extractor turns an image URL into a feature vector. Primary path is the
// external face service; when the service is unreachable or detects no face
// it degrades to a deterministic fingerprint of the image itself, and as a
// last resort to the zero vector. Extract never fails the caller.
type Extractor struct {
	cfg      *config.MatchingConfig
	download *http.Client

	faceOnce sync.Once
	face     *FaceClient
}

func NewExtractor(cfg *config.MatchingConfig) *Extractor {
	return &Extractor{
		cfg:      cfg,
		download: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// FaceService returns the lazily initialized face service handle. The handle
// replaces the usual mutable "models loaded" flag: it is built exactly once
// and is safe for concurrent use.
func (e *Extractor) FaceService() *FaceClient {
	e.faceOnce.Do(func() {
		if e.cfg.FaceAPIURL != "" {
			e.face = NewFaceClient(e.cfg.FaceAPIURL, e.cfg.FaceAPITimeout)
		}
	})
	return e.face
}

// Extract fetches the image at url and returns its feature vector. All
// processing failures degrade rather than propagate: download failure yields
// the zero vector, embedding failure yields a fingerprint of the image.
func (e *Extractor) Extract(ctx context.Context, url string) models.FeatureVector {
	data, err := e.Download(ctx, url)
	if err != nil {
		log.Printf("extractor: download failed for %s: %v", url, err)
		return ZeroVector()
	}

	if vec, err := e.embed(ctx, data); err == nil {
		return vec
	} else if !errors.Is(err, ErrFaceServiceUnavailable) && !errors.Is(err, ErrNoFace) {
		log.Printf("extractor: face service failed for %s: %v", url, err)
	}

	vec, err := Fingerprint(data)
	if err != nil {
		log.Printf("extractor: fingerprint failed for %s: %v", url, err)
		return ZeroVector()
	}
	return vec
}

// Download fetches raw image bytes with the configured timeout.
func (e *Extractor) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.download.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("image download returned status " + resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("image download returned empty body")
	}
	return data, nil
}

func (e *Extractor) embed(ctx context.Context, data []byte) (models.FeatureVector, error) {
	vec, err := e.FaceService().Embed(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(vec) != EmbeddingDim {
		return nil, errors.New("face service returned embedding of unexpected length")
	}
	return models.FeatureVector(vec), nil
}

// Fingerprint derives a deterministic EmbeddingDim-length vector from image
// bytes without any model: a size-normalized luminance grid when the image
// decodes, a byte-sampling vector when it does not. Fingerprints of the same
// bytes are always identical.
func Fingerprint(data []byte) (models.FeatureVector, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return byteFingerprint(data), nil
	}
	return luminanceFingerprint(img), nil
}

// luminanceFingerprint samples a 16x8 grid of average luminance values in
// [0,1] across the image, reading left-to-right, top-to-bottom.
func luminanceFingerprint(img image.Image) models.FeatureVector {
	const cols, rows = 16, 8
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	vec := make(models.FeatureVector, EmbeddingDim)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0 := bounds.Min.X + col*w/cols
			x1 := bounds.Min.X + (col+1)*w/cols
			y0 := bounds.Min.Y + row*h/rows
			y1 := bounds.Min.Y + (row+1)*h/rows
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}

			var sum, count float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
					sum += float64(gray.Y)
					count++
				}
			}
			vec[row*cols+col] = sum / count / 255
		}
	}
	return vec
}

// byteFingerprint samples EmbeddingDim bytes evenly across the raw data so
// undecodable images still produce a stable, comparable vector.
func byteFingerprint(data []byte) models.FeatureVector {
	vec := make(models.FeatureVector, EmbeddingDim)
	for i := 0; i < EmbeddingDim; i++ {
		idx := i * len(data) / EmbeddingDim
		vec[i] = float64(data[idx]) / 255
	}
	return vec
}

// ZeroVector is the total-failure representation: correct dimensionality,
// zero direction, scores 0 against everything.
func ZeroVector() models.FeatureVector {
	return make(models.FeatureVector, EmbeddingDim)
}
