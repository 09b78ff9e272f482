package matching

import (
	"testing"

	"github.com/reunite-app/api-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayUpsertCreatesMatchedRecord(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	parent := createUser(t, db, "parent")
	finder := createUser(t, db, "finder")
	missing := createReport(t, db, &parent, models.RoleParent, models.FeatureVector{1, 0, 0})
	found := createReport(t, db, &finder, models.RoleFinder, models.FeatureVector{1, 0, 0})

	gateway := NewGateway(db)
	match, created, err := gateway.Upsert(missing.ID, found.ID, 92)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.MatchStatusMatched, match.Status)
	assert.Equal(t, 92.0, match.Confidence)
	assert.False(t, match.NotificationSent)
}

func TestGatewayUpsertUpdatesExisting(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	parent := createUser(t, db, "parent")
	finder := createUser(t, db, "finder")
	missing := createReport(t, db, &parent, models.RoleParent)
	found := createReport(t, db, &finder, models.RoleFinder)

	gateway := NewGateway(db)
	first, created, err := gateway.Upsert(missing.ID, found.ID, 80)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := gateway.Upsert(missing.ID, found.ID, 95)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 95.0, second.Confidence)

	var count int64
	db.Model(&models.Match{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestGatewayUpsertPreservesTerminalStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	parent := createUser(t, db, "parent")
	finder := createUser(t, db, "finder")
	missing := createReport(t, db, &parent, models.RoleParent)
	found := createReport(t, db, &finder, models.RoleFinder)

	gateway := NewGateway(db)
	match, _, err := gateway.Upsert(missing.ID, found.ID, 80)
	require.NoError(t, err)

	// An admin rejects the candidate pair.
	require.NoError(t, db.Model(match).Update("status", models.MatchStatusRejected).Error)

	updated, created, err := gateway.Upsert(missing.ID, found.ID, 99)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.MatchStatusRejected, updated.Status)
	assert.Equal(t, 99.0, updated.Confidence)
}

func TestGatewayMarkNotified(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	parent := createUser(t, db, "parent")
	finder := createUser(t, db, "finder")
	missing := createReport(t, db, &parent, models.RoleParent)
	found := createReport(t, db, &finder, models.RoleFinder)

	gateway := NewGateway(db)
	match, _, err := gateway.Upsert(missing.ID, found.ID, 80)
	require.NoError(t, err)
	require.NoError(t, gateway.MarkNotified(match.ID))

	var reloaded models.Match
	require.NoError(t, db.First(&reloaded, match.ID).Error)
	assert.True(t, reloaded.NotificationSent)
}
