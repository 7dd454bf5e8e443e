package httpapi

import (
	"net/http"

	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req types.CaptureRequest
	if err := decode(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}
	creq, err := captureFromType(req)
	if err != nil {
		s.writeServiceError(w, r, "capture", err)
		return
	}

	res, err := s.capture.Process(r.Context(), creq)
	if err != nil {
		s.writeServiceError(w, r, "capture", err)
		return
	}
	respond(w, r, http.StatusOK, captureToType(res))
}

func (s *Server) handleGalleryStatus(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		writeError(w, r, http.StatusServiceUnavailable, "gallery_disabled", "no gallery configured")
		return
	}
	respond(w, r, http.StatusOK, galleryToType(s.gallery.Status()))
}

func (s *Server) handleGalleryRebuild(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		writeError(w, r, http.StatusServiceUnavailable, "gallery_disabled", "no gallery configured")
		return
	}
	rep, err := s.gallery.Rebuild(r.Context())
	if err != nil {
		s.logger.Printf("gallery rebuild error: %v", err)
		writeError(w, r, http.StatusServiceUnavailable, "rebuild_failed", err.Error())
		return
	}
	resp := galleryToType(s.gallery.Status())
	resp.Vectors = rep.Vectors
	resp.SkippedImages = rep.SkippedImages
	respond(w, r, http.StatusOK, resp)
}
