package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/models"
)

const anonymousRetention = 30 * 24 * time.Hour

// CleanupAnonymousDocuments removes owner-less documents past the
// retention window together with their stored files. Anonymous checks
// are a trial feature; their results are not kept forever.
func CleanupAnonymousDocuments(db *gorm.DB, log zerolog.Logger) {
	cutoff := time.Now().Add(-anonymousRetention)

	var stale []models.Document
	if err := db.Where("user_id IS NULL AND created_at < ?", cutoff).Find(&stale).Error; err != nil {
		log.Error().Err(err).Msg("cleanup: cannot list stale anonymous documents")
		return
	}
	if len(stale) == 0 {
		return
	}

	for _, doc := range stale {
		for _, path := range []string{doc.FilePath, doc.ImprovedFilePath} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", path).Msg("cleanup: cannot remove file")
			}
		}
		if err := db.Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
			log.Error().Err(err).Str("document_id", doc.ID.String()).Msg("cleanup: cannot delete document")
		}
	}
	log.Info().Int("count", len(stale)).Msg("cleanup: removed stale anonymous documents")
}

// StartCleanupJob runs the retention sweep once at startup and then
// every 24 hours.
func StartCleanupJob(db *gorm.DB, log zerolog.Logger) {
	CleanupAnonymousDocuments(db, log)

	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			CleanupAnonymousDocuments(db, log)
		}
	}()
}
