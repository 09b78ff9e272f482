package matching

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reunite-app/api-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessImageStoresEmbedding(t *testing.T) {
	t.Parallel()

	png := encodeTestPNG(t, 120)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(png)
	}))
	defer server.Close()

	db := newTestDB(t)
	owner := createUser(t, db, "owner")
	report := createReport(t, db, &owner, models.RoleParent, nil)
	image := report.Images[0]
	require.NoError(t, db.Model(&models.ReportImage{}).Where("id = ?", image.ID).
		Update("url", server.URL+"/photo.png").Error)

	processor := NewProcessor(db, NewExtractor(testMatchingConfig("")))
	require.NoError(t, processor.ProcessImage(context.Background(), image.ID))

	var stored models.ReportImage
	require.NoError(t, db.First(&stored, image.ID).Error)
	assert.Len(t, stored.Embedding, EmbeddingDim)
	assert.NotNil(t, stored.ProcessedAt)
	assert.True(t, stored.Processed())
}

func TestProcessImageUnknownID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	processor := NewProcessor(db, NewExtractor(testMatchingConfig("")))
	assert.Error(t, processor.ProcessImage(context.Background(), 9999))
}

func TestProcessImageDownloadFailureIsRetryable(t *testing.T) {
	t.Parallel()

	// First download attempt fails, later attempts serve the image.
	var requests int
	png := encodeTestPNG(t, 90)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.NotFound(w, r)
			return
		}
		w.Write(png)
	}))
	defer server.Close()

	db := newTestDB(t)
	owner := createUser(t, db, "owner")
	report := createReport(t, db, &owner, models.RoleParent, nil)
	require.NoError(t, db.Model(&models.ReportImage{}).Where("id = ?", report.Images[0].ID).
		Update("url", server.URL+"/photo.png").Error)

	processor := NewProcessor(db, NewExtractor(testMatchingConfig("")))
	assert.Error(t, processor.ProcessReportImages(context.Background(), report.ID))

	// The failed image stays unprocessed rather than pinned to a zero vector.
	var stored models.ReportImage
	require.NoError(t, db.First(&stored, report.Images[0].ID).Error)
	assert.Empty(t, stored.Embedding)
	assert.Nil(t, stored.ProcessedAt)
	assert.False(t, stored.Processed())

	// The next batch run picks it up again.
	require.NoError(t, processor.ProcessReportImages(context.Background(), report.ID))
	require.NoError(t, db.First(&stored, report.Images[0].ID).Error)
	assert.Len(t, stored.Embedding, EmbeddingDim)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestProcessReportImagesSkipsProcessed(t *testing.T) {
	t.Parallel()

	var hits int
	png := encodeTestPNG(t, 40)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write(png)
	}))
	defer server.Close()

	db := newTestDB(t)
	owner := createUser(t, db, "owner")
	already := models.FeatureVector{0.25, 0.5, 0.75}
	report := createReport(t, db, &owner, models.RoleParent, already, nil)
	for _, img := range report.Images {
		require.NoError(t, db.Model(&models.ReportImage{}).Where("id = ?", img.ID).
			Update("url", server.URL+"/photo.png").Error)
	}

	processor := NewProcessor(db, NewExtractor(testMatchingConfig("")))
	require.NoError(t, processor.ProcessReportImages(context.Background(), report.ID))

	assert.Equal(t, 1, hits)

	var images []models.ReportImage
	require.NoError(t, db.Where("report_id = ?", report.ID).Order("id").Find(&images).Error)
	require.Len(t, images, 2)
	assert.Equal(t, already, images[0].Embedding)
	assert.Len(t, images[1].Embedding, EmbeddingDim)
}
