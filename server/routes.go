package server

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/infer"
	"github.com/siegeai/schemaparser/metrics"
	"github.com/siegeai/schemaparser/schema"
)

type errorResponse struct {
	Error    string `json:"error"`
	Observed int    `json:"observed,omitempty"`
}

type observeResponse struct {
	Observed int `json:"observed"`
}

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("could not write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (*collection.Collection, bool) {
	c, err := s.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return c, true
}

func (*Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleCreateCollection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		c, err := s.registry.Create(req.Name)
		if errors.Is(err, collection.ErrExists) {
			writeError(w, http.StatusConflict, err)
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		slog.Info("created collection", "name", c.Name)
		writeJSON(w, http.StatusCreated, createResponse{ID: c.Name})
	}
}

func (s *Server) handleListCollections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs := s.registry.List()
		infos := make([]collection.Info, len(cs))
		for i, c := range cs {
			infos[i] = c.Info()
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

func (s *Server) handleDeleteCollection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if err := s.registry.Delete(name); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		slog.Info("deleted collection", "name", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleObserve decodes the body according to its content type. Documents
// decoded before a failure are still observed.
func (s *Server) handleObserve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := bodyFormat(r.Header.Get("Content-Type"))
		if err != nil {
			writeError(w, http.StatusUnsupportedMediaType, err)
			return
		}

		body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		var docs []schema.Document
		collect := func(d schema.Document) error {
			docs = append(docs, d)
			return nil
		}

		switch format {
		case formatJSON:
			var b []byte
			if b, err = io.ReadAll(body); err == nil {
				docs, err = s.decoder.Documents(b)
			}
		case formatNDJSON:
			err = s.decoder.ParseNDJSON(body, collect)
		case formatBSON:
			err = infer.ReadBSON(body, collect)
		}

		name := mux.Vars(r)["name"]
		if err == nil || len(docs) > 0 {
			s.registry.GetOrCreate(name).Observe(docs...)
		}

		if err != nil {
			metrics.DecodeErrors.WithLabelValues(string(format)).Inc()
			slog.Debug("could not decode documents", "collection", name, "format", format, "err", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Observed: len(docs)})
			return
		}
		writeJSON(w, http.StatusAccepted, observeResponse{Observed: len(docs)})
	}
}

func (s *Server) handleSchema() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.collection(w, r)
		if !ok {
			return
		}
		tree := c.Snapshot().Tree

		if r.URL.Query().Get("format") != "yaml" {
			writeJSON(w, http.StatusOK, tree)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			slog.Warn("could not write response", "err", err)
		}
		_ = enc.Close()
	}
}

func (s *Server) handleOpenAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.collection(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, c.Snapshot().OpenAPI)
	}
}

type format string

const (
	formatJSON   format = "json"
	formatNDJSON format = "ndjson"
	formatBSON   format = "bson"
)

var errUnsupportedMediaType = errors.New("unsupported content type")

func bodyFormat(contentType string) (format, error) {
	if contentType == "" {
		return formatJSON, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	switch mt {
	case "application/json", "text/json":
		return formatJSON, nil
	case "application/x-ndjson", "application/ndjson", "application/jsonl":
		return formatNDJSON, nil
	case "application/bson":
		return formatBSON, nil
	}
	return "", errUnsupportedMediaType
}
