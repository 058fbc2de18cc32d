package migrations

import (
	"github.com/jmylchreest/pianola/internal/models"
	"gorm.io/gorm"
)

const playbackLessonIndex = "idx_playback_records_lesson_created"

// AllMigrations returns all registered migrations in order.
//   - 001: playback_records and course_progress tables
//   - 002: composite index backing per-lesson history queries
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002PlaybackLessonIndex(),
	}
}

func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create playback and course progress tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.PlaybackRecord{},
				&models.CourseProgress{},
			)
		},
		Down: func(tx *gorm.DB) error {
			for _, table := range []string{"course_progress", "playback_records"} {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func migration002PlaybackLessonIndex() Migration {
	return Migration{
		Version:     "002",
		Description: "Index playback records by lesson and creation time",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.PlaybackRecord{}, playbackLessonIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + playbackLessonIndex + " ON playback_records (lesson_id, created_at)").Error
		},
		Down: func(tx *gorm.DB) error {
			if !tx.Migrator().HasIndex(&models.PlaybackRecord{}, playbackLessonIndex) {
				return nil
			}
			return tx.Migrator().DropIndex(&models.PlaybackRecord{}, playbackLessonIndex)
		},
	}
}
