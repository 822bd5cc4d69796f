package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/models"
	"github.com/crisha-app/crisha-backend/services"
	"github.com/crisha-app/crisha-backend/ws"
)

// currentUserUUID returns the authenticated user's id, or nil for
// anonymous requests.
func currentUserUUID(c *gin.Context) (*uuid.UUID, bool) {
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		return nil, true
	}
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, false
	}
	return &uid, true
}

// AnalyzeContract accepts a contract upload, creates a pending
// document and dispatches background processing. The response is 201
// with the pending document; clients observe the terminal state via
// polling or the websocket channel.
func AnalyzeContract(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	cfg := c.MustGet("cfg").(config.Config)
	pipeline := c.MustGet("pipeline").(*services.Pipeline)

	uid, ok := currentUserUUID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if file.Size > cfg.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !services.SupportedExtension(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, expected pdf, docx or txt"})
		return
	}

	// Quota gate: authenticated users with an exhausted balance are
	// rejected before any document row exists.
	if uid != nil {
		var profile models.Profile
		if err := db.Where("user_id = ?", uid).First(&profile).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile not found"})
			return
		}
		if profile.ChecksRemaining <= 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "no checks remaining, top up your balance"})
			return
		}
	}

	docID := uuid.New()

	base := strings.TrimSuffix(filepath.Base(file.Filename), ext)
	storedName := docID.String() + "_" + slug.Make(base) + ext
	storedPath := filepath.Join(cfg.UploadDir, storedName)
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not prepare upload directory"})
		return
	}
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded file"})
		return
	}

	doc := models.Document{
		ID:           docID,
		UserID:       uid,
		OriginalName: file.Filename,
		FilePath:     storedPath,
		FileType:     strings.TrimPrefix(ext, "."),
		FileSize:     file.Size,
		Status:       models.StatusPending,
	}
	if err := db.Create(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save document"})
		return
	}

	pipeline.Dispatch(doc.ID)
	ws.BroadcastDocumentListChanged()

	c.JSON(http.StatusCreated, doc)
}

// GetDocuments lists the caller's documents, newest first. Anonymous
// callers get an empty list.
func GetDocuments(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	uid, ok := currentUserUUID(c)
	if !ok || uid == nil {
		c.JSON(http.StatusOK, []models.Document{})
		return
	}

	var documents []models.Document
	if err := db.Where("user_id = ?", uid).Order("created_at DESC").Find(&documents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list documents"})
		return
	}
	c.JSON(http.StatusOK, documents)
}

// loadOwnedDocument fetches a document only if the caller owns it.
func loadOwnedDocument(c *gin.Context, db *gorm.DB) (*models.Document, bool) {
	uid, ok := currentUserUUID(c)
	if !ok || uid == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return nil, false
	}

	var document models.Document
	if err := db.Where("id = ? AND user_id = ?", id, uid).First(&document).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return nil, false
	}
	return &document, true
}

func GetDocumentDetail(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	document, ok := loadOwnedDocument(c, db)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, document)
}

// DownloadImprovedDocument streams the rewritten contract as a docx
// attachment.
func DownloadImprovedDocument(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	document, ok := loadOwnedDocument(c, db)
	if !ok {
		return
	}
	if document.ImprovedFilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no improved version available for this document"})
		return
	}

	base := strings.TrimSuffix(document.OriginalName, filepath.Ext(document.OriginalName))
	c.FileAttachment(document.ImprovedFilePath, "improved_"+base+".docx")
}
