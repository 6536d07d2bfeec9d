package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
)

// ocrRequest is the body accepted by /ocr and /ocr-dual.
type ocrRequest struct {
	ImageBase64 string `json:"imageBase64"`
	ImageURL    string `json:"imageUrl"`
	Mode        string `json:"mode"`
}

// errorResponse is the body of a failed request.
type errorResponse struct {
	Error  string                   `json:"error"`
	Kind   ocr.ErrorKind            `json:"kind,omitempty"`
	Errors map[string]ocr.PassError `json:"errors,omitempty"`
}

const missingImageMessage = "Missing imageBase64 or imageUrl"

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	s.serveOCR(w, r, "")
}

func (s *Server) handleOCRDual(w http.ResponseWriter, r *http.Request) {
	s.serveOCR(w, r, recognizer.ModeDual)
}

// serveOCR decodes the body and runs it. A non-empty force overrides the
// body's mode.
func (s *Server) serveOCR(w http.ResponseWriter, r *http.Request, force recognizer.Mode) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var body ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: "request body too large",
				Kind:  ocr.KindInvalidInput,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "bad json: " + err.Error(),
			Kind:  ocr.KindInvalidInput,
		})
		return
	}

	mode := force
	if mode == "" {
		m, err := recognizer.ParseMode(body.Mode)
		if err != nil {
			s.writeError(w, err)
			return
		}
		mode = m
	}

	out, err := s.rec.Recognize(r.Context(), recognizer.Request{
		Image: imaging.Input{Base64: body.ImageBase64, URL: body.ImageURL},
		Mode:  mode,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if mode == recognizer.ModeDual {
		resp := out.DualResponse()
		if out.AllFailed() {
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:  out.Err().Error(),
				Kind:   ocr.KindOf(out.Err()),
				Errors: resp.Errors,
			})
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, out.SingleResponse())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engine":  s.rec.EngineVersion(),
		"workers": s.rec.Workers(),
	})
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := ocr.KindOf(err)
	msg := err.Error()
	if errors.Is(err, imaging.ErrMissingImage) {
		msg = missingImageMessage
	}

	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", kind, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func statusFor(kind ocr.ErrorKind) int {
	switch kind {
	case ocr.KindInvalidInput:
		return http.StatusBadRequest
	case ocr.KindNetwork:
		return http.StatusBadGateway
	case ocr.KindRecognitionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
