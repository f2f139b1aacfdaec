package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// defaultMaxBodyBytes caps request bodies when no limit is configured.
const defaultMaxBodyBytes = 1 << 20

const allowedMethods = "GET, HEAD, POST, PUT, PATCH, DELETE"

// Endpoint serves CRUD requests for one collection under a path prefix.
type Endpoint struct {
	prefix  string
	policy  Policy
	store   *Collection
	logger  *log.Logger
	maxBody int64
	now     func() time.Time
}

// NewEndpoint creates an Endpoint with dependencies. A maxBody of zero or less
// selects the default limit.
func NewEndpoint(prefix string, policy Policy, store *Collection, logger *log.Logger, maxBody int64) *Endpoint {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Endpoint{
		prefix:  prefix,
		policy:  policy,
		store:   store,
		logger:  logger,
		maxBody: maxBody,
		now:     time.Now,
	}
}

// ServeHTTP routes a request under the prefix by method.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost,
		http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		w.Header().Set("Allow", allowedMethods)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, hasID, err := parseID(r.URL.Path)
	if err != nil {
		e.fail(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if hasID {
			e.handleGet(w, r, id)
		} else {
			e.handleList(w, r)
		}
	case http.MethodPost:
		e.handleCreate(w, r)
	case http.MethodPut:
		if !hasID {
			e.fail(w, r, ErrMissingID)
			return
		}
		e.handleReplace(w, r, id)
	case http.MethodPatch:
		if !hasID {
			e.fail(w, r, ErrMissingID)
			return
		}
		e.handlePatch(w, r, id)
	case http.MethodDelete:
		if !hasID {
			e.fail(w, r, ErrMissingID)
			return
		}
		e.handleDelete(w, r, id)
	}
}

// parseID extracts the identifier from "/prefix/{id}". Any other shape targets
// the collection. A trailing slash carries no identifier.
func parseID(path string) (int64, bool, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[2] == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(ErrInvalidID, "parse %q", parts[2])
	}
	return id, true, nil
}

// handleList processes GET and HEAD on the prefix.
func (e *Endpoint) handleList(w http.ResponseWriter, r *http.Request) {
	writeCachedJSON(w, r, e.store.List())
}

// handleGet processes GET and HEAD on /prefix/{id}.
func (e *Endpoint) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := e.store.Get(id)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	writeCachedJSON(w, r, rec)
}

// handleCreate processes POST on the prefix.
func (e *Endpoint) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := e.readBody(w, r)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	rec, err := decodeRecord(body)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	if missing := e.policy.Missing(rec); len(missing) > 0 {
		e.fail(w, r, &fieldsError{fields: missing})
		return
	}
	e.policy.ApplyDefaults(rec)
	if field := e.policy.CreatedField; field != "" {
		rec[field] = e.now().UTC().Format(timestampLayout)
	}

	created := e.store.Create(rec)
	w.Header().Set("Location", fmt.Sprintf("%s/%d", e.prefix, created.ID()))
	writeJSON(w, r, http.StatusCreated, map[string]any{"created": created})
}

// handleReplace processes PUT on /prefix/{id}.
func (e *Endpoint) handleReplace(w http.ResponseWriter, r *http.Request, id int64) {
	body, err := e.readBody(w, r)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	rec, err := decodeRecord(body)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	updated, err := e.store.Replace(id, rec, e.policy.preserved()...)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"updated": updated})
}

// handlePatch processes PATCH on /prefix/{id}.
func (e *Endpoint) handlePatch(w http.ResponseWriter, r *http.Request, id int64) {
	body, err := e.readBody(w, r)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	fields, err := decodeRecord(body)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	patched, err := e.store.Patch(id, fields)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"patched": patched})
}

// handleDelete processes DELETE on /prefix/{id}.
func (e *Endpoint) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := e.store.Delete(id); err != nil {
		e.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": true})
}

// readBody reads the whole request body, bounded by the endpoint limit.
func (e *Endpoint) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.maxBody))
	if err == nil {
		return body, nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errors.Wrapf(ErrBodyTooLarge, "limit %d bytes", tooLarge.Limit)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, errors.Wrap(ErrBodyTimeout, err.Error())
	}
	return nil, errors.Wrap(ErrInvalidInput, err.Error())
}

// fail maps err to a status code and writes it as a JSON error.
func (e *Endpoint) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := errors.Cause(err).Error()
	switch {
	case status == http.StatusInternalServerError:
		e.logger.Printf("error handling %s %s: %v", r.Method, r.URL.Path, err)
		msg = "internal server error"
	case errors.Cause(err) == ErrMissingFields:
		msg = err.Error()
	}
	writeError(w, r, status, msg)
}

func statusFor(err error) int {
	switch errors.Cause(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput, ErrMissingFields, ErrMissingID, ErrInvalidID:
		return http.StatusBadRequest
	case ErrBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrBodyTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"error": msg} with the given status.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeJSON serializes v and writes it with an exact Content-Length. HEAD
// requests get the headers only.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, ok := marshalJSON(w, r, v)
	if !ok {
		return
	}
	writeBody(w, r, status, body)
}

// writeCachedJSON is writeJSON for 200 lookups, adding an ETag and honoring
// If-None-Match.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, ok := marshalJSON(w, r, v)
	if !ok {
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeBody(w, r, http.StatusOK, body)
}

func marshalJSON(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	body, err := json.Marshal(v)
	if err != nil {
		writeBody(w, r, http.StatusInternalServerError, []byte(`{"error":"internal server error"}`))
		return nil, false
	}
	return body, true
}

func writeBody(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
