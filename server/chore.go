package server

import (
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ctfer-io/chore-server/global"
	errs "github.com/ctfer-io/chore-server/pkg/errors"
	"github.com/ctfer-io/chore-server/pkg/fs"
)

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleLiveness always answers, whatever the state of the store.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, statusResponse{
		Status:  "ok",
		Service: "chore-server",
	})
}

// handleFetch returns the stored chore state, or {} if there is none.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Store.Load(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, doc.Bytes())
}

// handleReplace overwrites the chore state with the request body, which must
// be a JSON object. Nothing is written if it is not.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodySize)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		if isMaxBytesError(err) {
			s.fail(w, r, errs.ErrPayloadTooLarge{Limit: s.MaxBodySize})
			return
		}
		s.fail(w, r, errs.ErrPayload{Reason: "unreadable body"})
		return
	}

	doc, err := fs.ParseDocument(b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Store.Save(ctx, doc); err != nil {
		s.fail(w, r, err)
		return
	}

	global.Log().Info(ctx, "chore state replaced",
		zap.Int("size", len(doc)),
	)
	s.writeJSON(w, r, http.StatusOK, okResponse{OK: true})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFromError(err)

	logger := global.Log()
	if code >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed",
			zap.Error(err),
			zap.Int("status", code),
		)
	} else {
		logger.Info(r.Context(), "request rejected",
			zap.Error(err),
			zap.Int("status", code),
		)
	}
	s.writeJSON(w, r, code, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		global.Log().Error(r.Context(), "encoding response", zap.Error(err))
		http.Error(w, errs.ErrInternalNoSub.Error(), http.StatusInternalServerError)
		return
	}
	s.write(w, r, code, b)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		global.Log().Error(r.Context(), "writing response", zap.Error(err))
	}
}
