// Package couchdbtest provides an in-memory CouchDB stand-in for tests.
//
// It implements the endpoints the dashboard uses: database info, _all_docs
// (include_docs, limit, skip, startkey, endkey), document GET and revisioned
// DELETE with conflict detection.
package couchdbtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Server is a fake CouchDB holding a single database
type Server struct {
	*httptest.Server

	Database string

	mu       sync.Mutex
	docs     map[string]map[string]interface{}
	seq      int
	failWith int
	requests []string
	afterGet func(id string)
	auth     [2]string
	hasAuth  bool
}

// NewServer starts a fake CouchDB serving database and closes it with the test
func NewServer(t testing.TB, database string) *Server {
	s := &Server{
		Database: database,
		docs:     make(map[string]map[string]interface{}),
	}

	router := mux.NewRouter()
	router.Use(s.recordAndFail)
	router.HandleFunc("/{db}", s.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/{db}/_all_docs", s.handleAllDocs).Methods(http.MethodGet)
	router.HandleFunc("/{db}/{id}", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/{db}/{id}", s.handleDelete).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Put stores doc (which must carry "_id") as a new revision and returns that revision
func (s *Server) Put(doc map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := doc["_id"].(string)
	stored := make(map[string]interface{}, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_rev"] = s.nextRev(id)
	s.docs[id] = stored
	return stored["_rev"].(string)
}

// PutJSON stores a JSON document
func (s *Server) PutJSON(t testing.TB, doc string) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	return s.Put(parsed)
}

// Touch gives a document a new revision, as a concurrent writer would
func (s *Server) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[id]; ok {
		doc["_rev"] = s.nextRev(id)
	}
}

// Has reports whether id is stored
func (s *Server) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[id]
	return ok
}

// FailWith makes every request answer status; 0 restores normal behavior
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// AfterGet registers a hook run once a single document has been read
func (s *Server) AfterGet(hook func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterGet = hook
}

// BasicAuth returns the credentials of the last request that carried any
func (s *Server) BasicAuth() (username, password string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth[0], s.auth[1], s.hasAuth
}

// Requests returns "METHOD path?query" for every request received
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) nextRev(id string) string {
	s.seq++
	generation := 1
	if existing, ok := s.docs[id]; ok {
		if rev, ok := existing["_rev"].(string); ok {
			if n, err := strconv.Atoi(strings.SplitN(rev, "-", 2)[0]); err == nil {
				generation = n + 1
			}
		}
	}
	return fmt.Sprintf("%d-%08x", generation, s.seq)
}

func (s *Server) recordAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		entry := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			entry += "?" + r.URL.RawQuery
		}
		s.requests = append(s.requests, entry)
		if user, pass, ok := r.BasicAuth(); ok {
			s.auth = [2]string{user, pass}
			s.hasAuth = true
		}
		failWith := s.failWith
		s.mu.Unlock()

		if failWith != 0 {
			writeError(w, failWith, "internal_server_error", "injected failure")
			return
		}
		if mux.Vars(r)["db"] != s.Database {
			writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	count := len(s.docs)
	seq := s.seq
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"db_name":       s.Database,
		"doc_count":     count,
		"doc_del_count": 0,
		"update_seq":    fmt.Sprintf("%d-fake", seq),
		"sizes":         map[string]int{"file": 1024, "external": 512, "active": 768},
	})
}

func (s *Server) handleAllDocs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	includeDocs := query.Get("include_docs") == "true"

	var startKey, endKey string
	hasStart := decodeKey(query.Get("startkey"), &startKey)
	hasEnd := decodeKey(query.Get("endkey"), &endKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	total := len(ids)

	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		if hasStart && id < startKey {
			continue
		}
		if hasEnd && id > endKey {
			continue
		}
		row := map[string]interface{}{
			"id":    id,
			"key":   id,
			"value": map[string]interface{}{"rev": s.docs[id]["_rev"]},
		}
		if includeDocs {
			row["doc"] = s.docs[id]
		}
		rows = append(rows, row)
	}

	skip, _ := strconv.Atoi(query.Get("skip"))
	if skip > len(rows) {
		skip = len(rows)
	}
	rows = rows[skip:]
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_rows": total,
		"offset":     skip,
		"rows":       rows,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	doc, ok := s.docs[id]
	var body []byte
	if ok {
		body, _ = json.Marshal(doc)
	}
	hook := s.afterGet
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "missing")
		return
	}

	// the hook runs before the response is sent, so the caller always sees the old body
	if hook != nil {
		hook(id)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rev := r.URL.Query().Get("rev")

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "deleted")
		return
	}
	if doc["_rev"] != rev {
		writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
		return
	}

	delete(s.docs, id)
	s.seq++
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"id":  id,
		"rev": fmt.Sprintf("%s-deleted", rev),
	})
}

func decodeKey(raw string, into *string) bool {
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), into) == nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	writeJSON(w, status, map[string]string{"error": code, "reason": reason})
}
