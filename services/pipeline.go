package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/models"
	"github.com/crisha-app/crisha-backend/ws"
)

// Pipeline runs the extract -> analyze -> persist -> charge chain for
// one uploaded document. Every document ends in a terminal status,
// processed or failed; nothing here propagates to a caller.
type Pipeline struct {
	db        *gorm.DB
	analyzer  Analyzer
	uploadDir string
	sem       *semaphore.Weighted
	log       zerolog.Logger
}

func NewPipeline(db *gorm.DB, analyzer Analyzer, uploadDir string, maxConcurrent int64, log zerolog.Logger) *Pipeline {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{
		db:        db,
		analyzer:  analyzer,
		uploadDir: uploadDir,
		sem:       semaphore.NewWeighted(maxConcurrent),
		log:       log,
	}
}

// Dispatch schedules background processing for one document and
// returns immediately. Concurrency across documents is bounded by the
// semaphore; a single document is never dispatched twice by design.
func (p *Pipeline) Dispatch(documentID uuid.UUID) {
	go func() {
		ctx := context.Background()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.log.Error().Err(err).Str("document_id", documentID.String()).Msg("semaphore acquire failed")
			return
		}
		defer p.sem.Release(1)
		p.Process(ctx, documentID)
	}()
}

// Process executes the state machine for one document. All failures
// are folded into a failed status with a human-readable summary.
func (p *Pipeline) Process(ctx context.Context, documentID uuid.UUID) {
	log := p.log.With().Str("document_id", documentID.String()).Logger()

	var doc models.Document
	if err := p.db.First(&doc, "id = ?", documentID).Error; err != nil {
		log.Error().Err(err).Msg("document not found, aborting")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic while processing document")
			p.fail(&doc, "Internal error while processing the document.")
		}
	}()

	log.Info().Str("file", doc.OriginalName).Msg("processing started")
	ws.SendStatusUpdate(doc.ID.String(), "extracting", 0.25, "")

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("cannot read stored file")
		p.fail(&doc, "Stored file could not be read: "+err.Error())
		return
	}

	text, err := ExtractText(data, "."+doc.FileType)
	if err != nil {
		log.Warn().Err(err).Msg("text extraction failed")
		p.fail(&doc, "Text extraction failed: "+err.Error())
		return
	}
	text = PreCleanText(text)
	if text == "" {
		p.fail(&doc, "Text extraction failed: the file contains no analysable text")
		return
	}
	log.Info().Int("chars", len(text)).Msg("text extracted")

	ws.SendStatusUpdate(doc.ID.String(), "analyzing", 0.5, "")
	report := p.analyzer.Analyze(ctx, text)
	if report.Err != "" {
		log.Warn().Str("reason", report.Err).Msg("analysis failed")
		p.fail(&doc, "AI analysis failed: "+report.Err)
		return
	}

	updates := map[string]interface{}{
		"status":          models.StatusProcessed,
		"score":           report.Score,
		"summary":         report.Summary,
		"risks":           models.RiskList(report.Risks),
		"recommendations": models.StringList(report.Recommendations),
		"processed_at":    time.Now(),
	}

	if report.RewrittenText != "" {
		improvedPath, err := SaveImprovedDocument(p.uploadDir, doc.ID.String(), report.RewrittenText)
		if err != nil {
			log.Error().Err(err).Msg("cannot save improved document")
			p.fail(&doc, "Failed to save the analysis results.")
			return
		}
		updates["improved_file_path"] = improvedPath
	}

	if err := p.db.Model(&doc).Updates(updates).Error; err != nil {
		log.Error().Err(err).Msg("cannot persist analysis results")
		p.fail(&doc, "Failed to save the analysis results.")
		return
	}

	// Charge the quota only for owned documents and only on success.
	if doc.UserID != nil {
		err := p.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Profile{}).
				Where("user_id = ?", doc.UserID).
				Updates(map[string]interface{}{
					"checks_remaining":   gorm.Expr("checks_remaining - ?", 1),
					"total_checks_count": gorm.Expr("total_checks_count + ?", 1),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("profile for user %s not found", doc.UserID)
			}
			return nil
		})
		if err != nil {
			// The document is already processed; the charge failure is
			// an observability problem, not a reason to fail the doc.
			log.Error().Err(err).Msg("quota update failed")
		}
	}

	log.Info().Int("score", report.Score).Int("risks", len(report.Risks)).Msg("processing finished")
	ws.SendStatusUpdate(doc.ID.String(), models.StatusProcessed, 1.0, "")
	ws.BroadcastDocumentListChanged()
}

// fail marks the document failed with an explanation. The update is
// conditional on the pending status: once a document is processed it
// stays processed, even if a later step (quota charge, broadcast)
// panics into the recover handler. Best effort beyond that: if the
// update itself fails there is nothing left to do but log.
func (p *Pipeline) fail(doc *models.Document, summary string) {
	res := p.db.Model(&models.Document{}).
		Where("id = ? AND status = ?", doc.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":  models.StatusFailed,
			"summary": summary,
		})
	if res.Error != nil {
		p.log.Error().Err(res.Error).Str("document_id", doc.ID.String()).Msg("cannot mark document failed")
		return
	}
	if res.RowsAffected == 0 {
		return
	}
	ws.SendStatusUpdate(doc.ID.String(), models.StatusFailed, 1.0, summary)
	ws.BroadcastDocumentListChanged()
}
