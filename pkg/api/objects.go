package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
	"github.com/ruslano69/eavsql/pkg/store"
)

// maxBodyBytes - ограничение тела запроса
const maxBodyBytes = 8 << 20

type oidResponse struct {
	OID string `json:"oid"`
}

type objectResponse = store.Record

// GET /api/objects/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	obj, ok, err := s.store.Get(r.Context(), id)
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, objectResponse{OID: id, Attrs: obj})
}

// POST /api/objects - новый объект
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, "", false, http.StatusCreated)
}

// PUT /api/objects/{id} - полная запись
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, chi.URLParam(r, "id"), false, http.StatusOK)
}

// PATCH /api/objects/{id} - запись только ключей тела
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, chi.URLParam(r, "id"), true, http.StatusOK)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, id string, delta bool, status int) {
	attrs, err := decodeObject(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid object: "+err.Error())
		return
	}

	var changed []string
	if delta {
		changed = attrs.Keys()
	}

	s.mu.Lock()
	oid, err := s.store.Put(r.Context(), id, attrs, changed)
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, status, oidResponse{OID: oid})
}

// DELETE /api/objects/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.store.Remove(r.Context(), chi.URLParam(r, "id"))
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/objects?where=&arg=&order=&offset=&limit=
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	s.mu.Lock()
	records, err := s.store.Query(r.Context(), q.Get("where"), literalArgs(q["arg"]), q.Get("order"), offset, limit)
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GET /api/keys
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	keys, err := s.store.KeyNames(r.Context(), 0)
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// GET /api/count?where=&arg=
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	n, err := s.store.Count(r.Context(), q.Get("where"), literalArgs(q["arg"]))
	s.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// decodeObject читает {"key": value, ...}; значение - форма value.Value или JSON скаляр
func decodeObject(r io.Reader) (store.Object, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	obj := make(store.Object, len(raw))
	for k, msg := range raw {
		v, err := value.FromJSON(msg)
		if err != nil {
			return nil, errors.New(k + ": " + err.Error())
		}
		obj[k] = v
	}
	return obj, nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, stmt.ErrIllegalArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error().Err(err).Str("collection", s.store.Collection()).Msg("store operation failed")
	writeError(w, http.StatusInternalServerError, "store operation failed")
}

func literalArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		args[i] = value.ParseLiteral(s)
	}
	return args
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err == nil && n < 0 {
		return 0, errors.New("negative")
	}
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
