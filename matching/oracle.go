package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var (
	// ErrNoFace is returned by Embed when the service detected no face in
	// the image. Callers fall back to a fingerprint vector.
	ErrNoFace = errors.New("no face detected in image")

	// ErrFaceServiceUnavailable is returned when no face service is configured.
	ErrFaceServiceUnavailable = errors.New("face service not configured")
)

// FaceClient talks to the external face-recognition service. The service is
// a black box: it embeds single images and answers boolean same-person
// queries for image pairs.
type FaceClient struct {
	baseURL string
	client  *http.Client
}

func NewFaceClient(baseURL string, timeout time.Duration) *FaceClient {
	return &FaceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type embedResponse struct {
	Success   bool      `json:"success"`
	Faces     int       `json:"faces"`
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

type compareResponse struct {
	Success bool   `json:"success"`
	Match   bool   `json:"match"`
	Error   string `json:"error"`
}

// Embed returns the embedding of the first face the service detects in the
// image. Returns ErrNoFace when the service finds no face.
func (fc *FaceClient) Embed(ctx context.Context, image []byte) ([]float64, error) {
	if fc == nil || fc.baseURL == "" {
		return nil, ErrFaceServiceUnavailable
	}

	var resp embedResponse
	if err := fc.postImages(ctx, "/embed", map[string][]byte{"image": image}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("face service error: %s", resp.Error)
	}
	if resp.Faces == 0 || len(resp.Embedding) == 0 {
		return nil, ErrNoFace
	}

	return resp.Embedding, nil
}

// Compare asks the service whether two images show the same person.
func (fc *FaceClient) Compare(ctx context.Context, source, target []byte) (bool, error) {
	if fc == nil || fc.baseURL == "" {
		return false, ErrFaceServiceUnavailable
	}

	var resp compareResponse
	files := map[string][]byte{"source": source, "target": target}
	if err := fc.postImages(ctx, "/compare", files, &resp); err != nil {
		return false, err
	}
	if !resp.Success {
		return false, fmt.Errorf("face service error: %s", resp.Error)
	}

	return resp.Match, nil
}

// Health probes the service. Used by the health endpoint to report the
// matching pipeline as degraded when the service is unreachable.
func (fc *FaceClient) Health(ctx context.Context) error {
	if fc == nil || fc.baseURL == "" {
		return ErrFaceServiceUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fc.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := fc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face service health returned status %d", resp.StatusCode)
	}
	return nil
}

func (fc *FaceClient) postImages(ctx context.Context, path string, files map[string][]byte, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := writer.CreateFormFile(field, field+".jpg")
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fc.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := fc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face service returned status %d: %s", resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}
