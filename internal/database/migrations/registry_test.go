package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/pianola/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func newTestMigrator(t *testing.T) (*Migrator, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	return migrator, db
}

func TestAllMigrations_VersionsAreUniqueAndOrdered(t *testing.T) {
	migrations := AllMigrations()
	require.NotEmpty(t, migrations)

	seen := make(map[string]bool)
	for i, m := range migrations {
		assert.False(t, seen[m.Version], "duplicate version: %s", m.Version)
		seen[m.Version] = true
		assert.NotNil(t, m.Up, "migration %s has no Up", m.Version)
		assert.NotNil(t, m.Down, "migration %s has no Down", m.Version)
		if i > 0 {
			assert.Less(t, migrations[i-1].Version, m.Version)
		}
	}
}

func TestMigrator_Up(t *testing.T) {
	migrator, db := newTestMigrator(t)
	ctx := context.Background()

	applied, err := migrator.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(AllMigrations()), applied)

	assert.True(t, db.Migrator().HasTable("playback_records"))
	assert.True(t, db.Migrator().HasTable("course_progress"))
	assert.True(t, db.Migrator().HasIndex(&models.PlaybackRecord{}, playbackLessonIndex))

	// Running again applies nothing.
	applied, err = migrator.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestMigrator_StatusAndPending(t *testing.T) {
	migrator, _ := newTestMigrator(t)
	ctx := context.Background()

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(AllMigrations()))
	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, len(AllMigrations()))

	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotNil(t, s.AppliedAt)
	}

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrator_Down(t *testing.T) {
	migrator, db := newTestMigrator(t)
	ctx := context.Background()

	// Nothing applied yet.
	require.NoError(t, migrator.Down(ctx))

	_, err := migrator.Up(ctx)
	require.NoError(t, err)

	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasIndex(&models.PlaybackRecord{}, playbackLessonIndex))
	assert.True(t, db.Migrator().HasTable("playback_records"))

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002", pending[0].Version)

	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasTable("playback_records"))
	assert.False(t, db.Migrator().HasTable("course_progress"))
}

func TestMigrator_Down_UnknownVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	require.NoError(t, migrator.Init(ctx))
	require.NoError(t, db.Create(&MigrationRecord{Version: "999", Description: "gone"}).Error)

	err := migrator.Down(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMigrations_CanInsertData(t *testing.T) {
	migrator, db := newTestMigrator(t)
	ctx := context.Background()

	_, err := migrator.Up(ctx)
	require.NoError(t, err)

	record := &models.PlaybackRecord{SessionID: models.NewULID(), LessonID: "lesson-1"}
	require.NoError(t, db.Create(record).Error)

	progress := &models.CourseProgress{UserID: "user-1", CourseID: "course-1"}
	require.NoError(t, db.Create(progress).Error)

	duplicate := &models.CourseProgress{UserID: "user-1", CourseID: "course-1"}
	assert.Error(t, db.Create(duplicate).Error, "user and course are unique together")
}
