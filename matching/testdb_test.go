package matching

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/reunite-app/api-go/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.RefreshToken{}, &models.Report{},
		&models.ReportImage{}, &models.Match{}, &models.Notification{},
		&models.Job{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	password := "irrelevant"
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: &password,
		Role:     models.RoleUser,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// createReport stores a report with one image per vector; a nil vector
// leaves that image unprocessed.
func createReport(t *testing.T, db *gorm.DB, owner *models.User, role models.ReportRole, vectors ...models.FeatureVector) models.Report {
	t.Helper()

	report := models.Report{
		Role:        role,
		Status:      models.ReportStatusActive,
		OwnerID:     owner.ID,
		Description: "test report",
		Location:    "somewhere",
	}
	for i, vec := range vectors {
		report.Images = append(report.Images, models.ReportImage{
			URL:       fmt.Sprintf("https://cdn.example.com/%s/%d.jpg", owner.Username, i),
			Embedding: vec,
		})
	}
	require.NoError(t, db.Create(&report).Error)
	return report
}
