package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
)

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	if s.deps.Extractor == nil {
		s.fail(w, http.StatusServiceUnavailable, "vision extraction is not configured", nil, false)
		return
	}

	up, err := readUpload(w, r, s.cfg.Upload.MaxBytes)
	if err != nil {
		var uerr *UploadError
		if errors.As(err, &uerr) {
			s.fail(w, http.StatusBadRequest, uerr.Error(), nil, false)
			return
		}
		s.fail(w, http.StatusInternalServerError, "failed to read upload", err, false)
		return
	}

	ctx := r.Context()
	candidates, err := s.deps.Extractor.Extract(ctx, up.Data, up.MIMEType)
	if err != nil {
		msg := "vision request failed"
		if errors.Is(err, book.ErrVisionParse) {
			msg = "could not extract a book list"
		}
		s.fail(w, http.StatusInternalServerError, msg, err, false)
		return
	}

	name, err := s.deps.Names.NewFileName(up.Filename)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "failed to name image file", err, false)
		return
	}
	imagePath, err := s.deps.Images.Save(ctx, name, up.Data)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "failed to save image file", err, false)
		return
	}

	res, err := s.deps.Ingester.Ingest(ctx, imagePath, candidates)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "failed to store books", err, false)
		return
	}

	s.logger.Info("shelf photo processed",
		zap.String("filename", up.Filename),
		zap.String("image", imagePath),
		zap.Int("total_found", res.TotalFound),
		zap.Int("total_inserted", res.TotalInserted),
	)
	records := res.Records
	if records == nil {
		records = []book.Record{}
	}
	succeed(w, map[string]any{
		"books":          records,
		"total_found":    res.TotalFound,
		"total_inserted": res.TotalInserted,
	})
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Store.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "failed to list books", err, false)
		return
	}
	if records == nil {
		records = []book.Record{}
	}
	s.logger.Debug("books listed", zap.Int("count", len(records)))
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	if raw == "" {
		s.fail(w, http.StatusBadRequest, "book id is required", nil, true)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.fail(w, http.StatusBadRequest, "invalid book id", nil, true)
		return
	}

	if err := s.deps.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, book.ErrNotFound) {
			s.fail(w, http.StatusNotFound, "book not found", nil, true)
			return
		}
		s.fail(w, http.StatusInternalServerError, "failed to delete book", err, true)
		return
	}
	s.logger.Info("book deleted", zap.Int64("id", id))
	succeed(w, map[string]any{"message": "book deleted"})
}

func (s *Server) reenrich(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Sweeper.Run(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "re-enrichment failed", err, true)
		return
	}
	body := map[string]any{
		"updated_count": res.UpdatedCount,
		"total_checked": res.TotalChecked,
	}
	if res.TotalChecked == 0 {
		body["message"] = "nothing to backfill"
	}
	succeed(w, body)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.deps.Store.Reset(ctx); err != nil {
		s.fail(w, http.StatusInternalServerError, "reset failed", err, true)
		return
	}
	deleted, err := s.deps.Images.Purge(ctx)
	if err != nil {
		s.logger.Warn("image purge incomplete", zap.Int("deleted", deleted), zap.Error(err))
	}
	s.logger.Info("inventory reset", zap.Int("deleted_files", deleted))
	succeed(w, map[string]any{
		"message":       "all data has been reset",
		"deleted_files": deleted,
	})
}
