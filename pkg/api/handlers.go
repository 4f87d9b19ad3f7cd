package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/codec"
	"github.com/ssargent/arenabuf/pkg/schema"
	"github.com/ssargent/arenabuf/pkg/storage"
)

const (
	// ContentTypeJSON is the default document representation
	ContentTypeJSON = "application/json"
	// ContentTypeCBOR selects CBOR for decoded values
	ContentTypeCBOR = "application/cbor"
	// ContentTypeBinary carries buffer bytes as stored
	ContentTypeBinary = "application/octet-stream"

	maxBodyBytes     = 16 << 20
	defaultListLimit = 100
	maxListLimit     = 1000
)

var errListFull = errors.New("list limit reached")

// statusFor maps store and buffer errors onto HTTP status codes
func statusFor(err error) int {
	var (
		pathErr     *buffer.PathError
		typeErr     *buffer.TypeMismatchError
		capErr      *buffer.CapacityError
		boundsErr   *buffer.BufferBoundsError
		schemaErr   *schema.SchemaError
		syntaxErr   *json.SyntaxError
		jsonTypeErr *json.UnmarshalTypeError
		tooLarge    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &pathErr), errors.As(err, &typeErr), errors.As(err, &capErr),
		errors.As(err, &boundsErr), errors.As(err, &schemaErr),
		errors.As(err, &syntaxErr), errors.As(err, &jsonTypeErr),
		errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail records a failed operation and sends the mapped error
func (s *Server) fail(w http.ResponseWriter, op string, start time.Time, err error) {
	s.metrics.RecordDocOperation(op, false, time.Since(start))
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Errorw("operation failed", "operation", op, "error", err)
	}
	sendError(w, err.Error(), status)
}

// documentID parses the {id} URL parameter
func documentID(r *http.Request) (ksuid.KSUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return ksuid.Nil, errors.New("document id is required")
	}
	id, err := ksuid.Parse(raw)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}

// readBody reads a bounded request body
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// mediaType returns the media type of a header value, ignoring parameters
func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

// wantsCBOR reports whether the Accept header asks for CBOR
func wantsCBOR(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mediaType(part) == ContentTypeCBOR {
			return true
		}
	}
	return false
}

// render turns a stored document into its JSON response
func (s *Server) render(id ksuid.KSUID, data []byte, path string) (DocumentResponse, error) {
	b, err := s.store.Factory().OpenBuffer(data)
	if err != nil {
		return DocumentResponse{}, err
	}
	value, err := b.PathJSON(path)
	if err != nil {
		return DocumentResponse{}, err
	}
	return DocumentResponse{ID: id.String(), Size: len(data), Value: value}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sc := s.store.Factory().Schema()
	sendSuccess(w, map[string]interface{}{
		"schema":      sc,
		"fingerprint": fmt.Sprintf("%016x", sc.Fingerprint()),
		"sortable":    sc.Sortable(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, "stats", start, err)
		return
	}
	s.metrics.RecordDocOperation("stats", true, time.Since(start))
	s.metrics.UpdateStoreStats(stats.Documents, stats.Bytes)
	sendSuccess(w, stats)
}

// handleCreate stores a new document. A JSON body is encoded with the store
// schema; an application/octet-stream body must already be a buffer.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, "create", start, err)
		return
	}

	data := body
	if mediaType(r.Header.Get("Content-Type")) != ContentTypeBinary {
		b, err := buffer.FromJSON(s.store.Factory().Schema(), body)
		if err != nil {
			s.fail(w, "create", start, err)
			return
		}
		data = b.Finish()
	}

	id, err := s.store.Create(data)
	if err != nil {
		s.fail(w, "create", start, err)
		return
	}
	s.metrics.RecordDocOperation("create", true, time.Since(start))
	sendStatus(w, map[string]interface{}{"id": id.String(), "size": len(data)}, http.StatusCreated)
}

// handleList returns up to ?limit= documents in scan order
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	docs := make([]DocumentResponse, 0)
	err := s.store.Scan(r.Context(), func(id ksuid.KSUID, data []byte) error {
		doc, err := s.render(id, data, "")
		if err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, doc)
		if len(docs) >= limit {
			return errListFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errListFull) {
		s.fail(w, "scan", start, err)
		return
	}
	s.metrics.RecordDocOperation("scan", true, time.Since(start))
	sendSuccess(w, docs)
}

// handleGet returns the document, or the value at ?path=, as JSON or CBOR
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := documentID(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	path := r.URL.Query().Get("path")

	data, err := s.store.Read(id)
	if err != nil {
		s.fail(w, "get", start, err)
		return
	}

	if wantsCBOR(r) {
		b, err := s.store.Factory().OpenBuffer(data)
		if err != nil {
			s.fail(w, "get", start, err)
			return
		}
		value, _, err := b.Get(path)
		if err != nil {
			s.fail(w, "get", start, err)
			return
		}
		out, err := codec.MarshalCBOR(value)
		if err != nil {
			s.fail(w, "get", start, err)
			return
		}
		s.metrics.RecordDocOperation("get", true, time.Since(start))
		sendBytes(w, ContentTypeCBOR, out)
		return
	}

	doc, err := s.render(id, data, path)
	if err != nil {
		s.fail(w, "get", start, err)
		return
	}
	s.metrics.RecordDocOperation("get", true, time.Since(start))
	sendSuccess(w, doc)
}

// handleGetRaw returns the stored buffer bytes
func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := documentID(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.store.Read(id)
	if err != nil {
		s.fail(w, "get", start, err)
		return
	}
	s.metrics.RecordDocOperation("get", true, time.Since(start))
	sendBytes(w, ContentTypeBinary, data)
}

// handleSet stores the JSON body at ?path= (the whole document when empty)
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := documentID(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, "set", start, err)
		return
	}
	path := r.URL.Query().Get("path")

	if err := s.store.Mutate(id, func(b *buffer.Buffer) error {
		return b.SetJSON(path, body)
	}); err != nil {
		s.fail(w, "set", start, err)
		return
	}
	s.metrics.RecordDocOperation("set", true, time.Since(start))
	sendSuccess(w, map[string]string{"id": id.String(), "path": path})
}

// handleDelete deletes the value at ?path=, or the whole document
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := documentID(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		err = s.store.Delete(id)
	} else {
		err = s.store.Mutate(id, func(b *buffer.Buffer) error {
			return b.Delete(path)
		})
	}
	if err != nil {
		s.fail(w, "delete", start, err)
		return
	}
	s.metrics.RecordDocOperation("delete", true, time.Since(start))
	sendSuccess(w, map[string]string{"id": id.String(), "path": path})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := documentID(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sizes, err := s.store.Compact(id)
	if err != nil {
		s.fail(w, "compact", start, err)
		return
	}
	s.metrics.RecordDocOperation("compact", true, time.Since(start))
	s.metrics.RecordCompaction(int64(sizes.Current), int64(sizes.AfterCompaction))
	sendSuccess(w, CompactResponse{ID: id.String(), Before: sizes.Current, After: sizes.AfterCompaction})
}

func (s *Server) handleCompactAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := s.store.CompactAll(r.Context())
	if err != nil {
		s.fail(w, "compact_all", start, err)
		return
	}
	s.metrics.RecordDocOperation("compact_all", true, time.Since(start))
	s.metrics.RecordCompaction(stats.Before, stats.After)
	sendSuccess(w, stats)
}
