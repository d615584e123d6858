package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"truthlink/config"
	"truthlink/core/storage"
	"truthlink/core/store"
	"truthlink/core/utils"

	"github.com/gofrs/uuid/v5"
)

// allowedEvidenceTypes is the whitelist for anonymous uploads. Anything
// executable or ambiguous is rejected.
var allowedEvidenceTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
	"video/mp4":       ".mp4",
}

type AttachmentsHandler struct {
	cfg    *config.AppConfig
	blobs  storage.BlobStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewAttachmentsHandler(cfg *config.AppConfig, blobs storage.BlobStore, audits store.AuditStore, logger *utils.Logger) *AttachmentsHandler {
	return &AttachmentsHandler{cfg: cfg, blobs: blobs, audits: audits, logger: logger}
}

// Upload accepts one evidence file before submission and hands back an
// opaque reference the reporter includes in the report payload. The
// file name is never stored; only the server-chosen key survives.
func (h *AttachmentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.Security.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "attachments.too_large", "file exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "attachments.bad_payload", "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "attachments.bad_payload", "expected multipart form with a file field")
		return
	}
	defer file.Close()

	// Sniff the first bytes; the declared header is not trusted.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "attachments.bad_payload", "could not read file")
		return
	}
	contentType := normalizeContentType(http.DetectContentType(head[:n]))
	ext, ok := allowedEvidenceTypes[contentType]
	if !ok {
		// DetectContentType cannot see pdf/mp4 in every container; fall
		// back to the declared type if it is whitelisted.
		declared := normalizeContentType(header.Header.Get("Content-Type"))
		if ext, ok = allowedEvidenceTypes[declared]; ok {
			contentType = declared
		}
	}
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "attachments.bad_type", "file type not accepted")
		return
	}

	key := "evidence/" + uuid.Must(uuid.NewV4()).String() + ext
	body := io.MultiReader(bytes.NewReader(head[:n]), file)
	if err := h.blobs.Put(r.Context(), key, contentType, body); err != nil {
		h.logger.Errorf("evidence upload: %v", err)
		writeError(w, http.StatusInternalServerError, "attachments.store_failed", "server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"ref":          key,
		"content_type": contentType,
	})
}

// Download streams stored evidence to an investigator.
func (h *AttachmentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(urlParam(r, "key"))
	if !storage.ValidKey(key) {
		writeError(w, http.StatusNotFound, "attachments.not_found", "attachment not found")
		return
	}
	rc, contentType, err := h.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachments.not_found", "attachment not found")
			return
		}
		h.logger.Errorf("evidence download %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "attachments.read_failed", "server error")
		return
	}
	defer rc.Close()
	if sess := sessionFrom(r); sess != nil {
		h.audits.Log(r.Context(), sess.Username, "attachments.download", key)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Errorf("evidence stream %s: %v", key, err)
	}
}

func normalizeContentType(ct string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
}
