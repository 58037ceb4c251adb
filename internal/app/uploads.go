package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"lawtutor/internal/domain"
	"lawtutor/internal/events"
	"lawtutor/internal/extract"
	"lawtutor/internal/store"
	"lawtutor/internal/util"
)

var allowedUploadExts = map[string]string{
	".pdf":  "pdf",
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".webp": "image",
	".html": "html",
	".htm":  "html",
	".txt":  "text",
	".md":   "text",
}

// ProcessUpload stores an uploaded file, extracts its text, and records
// the upload. Extraction failures are tolerated; the file is still kept.
func (a *App) ProcessUpload(ctx context.Context, userID, filename, mimeType string, r io.Reader, chapter string) (domain.Upload, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Upload{}, invalidf("filename is required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := allowedUploadExts[ext]
	if !ok {
		return domain.Upload{}, invalidf("unsupported file type")
	}

	data, err := io.ReadAll(io.LimitReader(r, a.maxUploadBytes+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > a.maxUploadBytes {
		return domain.Upload{}, invalidf("file exceeds %d byte limit", a.maxUploadBytes)
	}
	if len(data) == 0 {
		return domain.Upload{}, invalidf("file is empty")
	}

	text, err := extract.FromFile(filename, mimeType, data)
	if err != nil {
		slog.Warn("text extraction failed", "file", filename, "error", err)
		text = ""
	}

	id := util.NewID()
	key := userID + "/" + id + "/" + filename
	if err := a.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return domain.Upload{}, err
	}

	fileURL, err := a.blobs.PresignGet(ctx, key, 24*time.Hour)
	if err != nil {
		slog.Warn("presign failed", "file", filename, "error", err)
		fileURL = ""
	}

	upload := domain.Upload{
		ID:            id,
		StorageKey:    key,
		FileName:      filename,
		FileType:      kind,
		FileSize:      int64(len(data)),
		Chapter:       chapter,
		ExtractedText: text,
		FileURL:       fileURL,
		UploadedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUpload(userID, upload); err != nil {
		a.blobs.Delete(ctx, key)
		return domain.Upload{}, err
	}

	a.publish(events.UploadProcessed, map[string]string{
		"userId": userID, "uploadId": id, "fileName": filename,
	})
	return upload, nil
}

// ListUploads returns the user's uploads, newest first.
func (a *App) ListUploads(userID string) ([]domain.Upload, error) {
	return a.store.ListUploads(userID)
}

// GetUpload loads one upload record.
func (a *App) GetUpload(userID, uploadID string) (domain.Upload, error) {
	u, ok, err := a.store.GetUpload(userID, uploadID)
	if err != nil {
		return domain.Upload{}, err
	}
	if !ok {
		return domain.Upload{}, store.ErrNotFound
	}
	return u, nil
}

// OpenUpload returns the stored bytes for file serving.
func (a *App) OpenUpload(ctx context.Context, userID, uploadID string) (domain.Upload, io.ReadCloser, error) {
	u, err := a.GetUpload(userID, uploadID)
	if err != nil {
		return domain.Upload{}, nil, err
	}
	rc, err := a.blobs.Get(ctx, u.StorageKey)
	if err != nil {
		return domain.Upload{}, nil, err
	}
	return u, rc, nil
}

// DeleteUpload removes the record and its stored bytes.
func (a *App) DeleteUpload(ctx context.Context, userID, uploadID string) error {
	u, err := a.GetUpload(userID, uploadID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteUpload(userID, uploadID); err != nil {
		return err
	}
	if err := a.blobs.Delete(ctx, u.StorageKey); err != nil {
		slog.Warn("blob delete failed", "uploadId", uploadID, "error", err)
	}
	return nil
}
