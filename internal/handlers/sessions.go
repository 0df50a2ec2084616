package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
	"github.com/gorilla/mux"
)

// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
const multipartOverhead = 1 << 20

type SessionHandler struct {
	service     services.SessionService
	logger      *utils.Logger
	maxFileSize int64
}

func NewSessionHandler(service services.SessionService, maxFileSize int64, logger *utils.Logger) *SessionHandler {
	return &SessionHandler{
		service:     service,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var prefs *models.Preferences

	var body models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if !errors.Is(err, io.EOF) {
			h.respondError(w, r, utils.NewBadRequestError("Invalid request body"))
			return
		}
	} else {
		prefs = &body
	}

	view, err := h.service.CreateSession(r.Context(), prefs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusCreated, view)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		h.respondError(w, r, utils.NewBadRequestError("Invalid request body"))
		return
	}

	view, err := h.service.SetPreferences(r.Context(), mux.Vars(r)["id"], prefs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limitMsg := fmt.Sprintf("File size exceeds %s limit", sizeLabel(h.maxFileSize))

	// Check Content-Length header first to reject oversized requests early
	if r.ContentLength > h.maxFileSize+multipartOverhead {
		h.rejectUpload(w, r, id, limitMsg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.rejectUpload(w, r, id, limitMsg)
			return
		}
		h.respondError(w, r, utils.NewBadRequestError("Invalid form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, utils.NewBadRequestError("No file provided"))
		return
	}
	defer file.Close()

	reported := header.Header.Get("Content-Type")
	contentType := determineContentType(header.Filename, reported)

	h.logger.FromContext(r.Context()).Info("File upload attempt",
		"session_id", id,
		"filename", header.Filename,
		"reported_content_type", reported,
		"determined_content_type", contentType)

	// Type is checked before the body is read so a rejected file costs nothing more.
	if !services.IsPDFContentType(contentType) {
		h.rejectUpload(w, r, id, services.MsgInvalidFileType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.rejectUpload(w, r, id, services.MsgReadFailed)
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.rejectUpload(w, r, id, limitMsg)
		return
	}

	req := &models.UploadRequest{
		File:        data,
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
	}

	view, err := h.service.UploadDocument(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, utils.NewBadRequestError("Invalid request body"))
		return
	}

	view, err := h.service.SendMessage(r.Context(), mux.Vars(r)["id"], req.Message)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// rejectUpload records message on the session and answers 400 with it.
func (h *SessionHandler) rejectUpload(w http.ResponseWriter, r *http.Request, id, message string) {
	if err := h.service.RecordUploadError(r.Context(), id, message); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondError(w, r, utils.NewBadRequestError(message))
}

func sizeLabel(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// determineContentType trusts the part header unless it is missing or generic,
// in which case the file extension decides.
func determineContentType(filename, headerContentType string) string {
	mediaType, _, err := mime.ParseMediaType(headerContentType)
	if err == nil && mediaType != "application/octet-stream" {
		return headerContentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.PDFContentType
	case "":
		return headerContentType
	}

	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return headerContentType
}

func (h *SessionHandler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, status, data, h.logger.FromContext(r.Context()))
}

func (h *SessionHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		message = appErr.Message
	}

	log := h.logger.FromContext(r.Context())
	if status >= 500 {
		log.Error("Request error", "status", status, "error", err)
	} else {
		log.Warn("Request error", "status", status, "error", message)
	}

	respondJSON(w, status, map[string]string{"error": message}, log)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}, logger *utils.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
