// Package http provides the HTTP channel: a local JSON API over one editor
// session. Requests are served one at a time.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	formschema "github.com/gorilla/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/adapters/metrics"
	"github.com/artpar/dbedit/app"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Options configures the channel.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Registry     *schema.Registry
	Metrics      *metrics.Collector
	Gatherer     prometheus.Gatherer // serves MetricsPath when set
	MetricsPath  string
	Logger       zerolog.Logger
}

// Channel implements the HTTP channel.
type Channel struct {
	router       chi.Router
	mu           sync.Mutex // guards editor
	editor       *app.Editor
	metrics      *metrics.Collector
	logger       zerolog.Logger
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	server       *http.Server
}

// New creates the HTTP channel over e.
func New(e *app.Editor, opts Options) *Channel {
	registry := opts.Registry
	if registry == nil {
		registry = schema.Default()
	}

	c := &Channel{
		router:       chi.NewRouter(),
		editor:       e,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		addr:         opts.Addr,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}

	c.router.Use(middleware.Recoverer)
	c.router.Use(c.instrument)

	// Profile introspection
	c.router.Mount("/_schema", NewSchemaHandler(registry).Routes())

	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		c.router.Handle(path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	c.router.Get("/document", c.handleDocument)
	c.router.Get("/records", c.handleList)
	c.router.Post("/records", c.handleAdd)
	c.router.Get("/records/{index}", c.handleGet)
	c.router.Put("/records/{index}", c.handleUpdate)
	c.router.Delete("/records/{index}", c.handleDelete)
	c.router.Post("/sort/{key}", c.handleSort)
	c.router.Post("/save", c.handleSave)
	c.router.Post("/reload", c.handleReload)
	c.router.Get("/validate", c.handleValidate)

	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "http"
}

// Handler returns the HTTP handler.
func (c *Channel) Handler() http.Handler {
	return c.router
}

// Do runs fn with exclusive access to the editor, between requests.
func (c *Channel) Do(fn func(e *app.Editor)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.editor)
}

// Start starts the HTTP server. It returns once the server is listening
// in the background.
func (c *Channel) Start(ctx context.Context) error {
	if c.addr == "" {
		return errors.InvalidArgumentf("http: no listen address")
	}

	c.server = &http.Server{
		Addr:              c.addr,
		Handler:           c.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       c.readTimeout,
		WriteTimeout:      c.writeTimeout,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error().Err(err).Str("addr", c.addr).Msg("http server error")
		}
	}()

	c.logger.Info().Str("addr", c.addr).Msg("http server started")
	return nil
}

// Stop stops the HTTP server.
func (c *Channel) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// instrument records request metrics and logs each request.
func (c *Channel) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)

		if c.metrics != nil {
			c.metrics.RequestsTotal.WithLabelValues(r.Method, route, metrics.StatusClass(ww.Status())).Inc()
			c.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}
		c.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

type documentResponse struct {
	Profile  string        `json:"profile"`
	Path     string        `json:"path"`
	Records  int           `json:"records"`
	Dirty    bool          `json:"dirty"`
	Changed  bool          `json:"changed_on_disk"`
	Sort     listing.State `json:"sort"`
	Search   string        `json:"search"`
	Where    string        `json:"where"`
	Selected *int          `json:"selected"`
}

// handleDocument handles GET /document
func (c *Channel) handleDocument(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editor.Loaded() {
		c.writeError(w, errors.FailedPrecondition("no document open"))
		return
	}
	c.writeJSON(w, http.StatusOK, c.documentState())
}

func (c *Channel) documentState() documentResponse {
	resp := documentResponse{
		Profile: c.editor.Profile().Name,
		Path:    c.editor.Path(),
		Records: len(c.editor.Document().Records),
		Dirty:   c.editor.Dirty(),
		Changed: c.editor.ChangedOnDisk(),
		Sort:    c.editor.SortState(),
		Search:  c.editor.SearchTerm(),
		Where:   c.editor.WhereExpression(),
	}
	if i, ok := c.editor.Selected(); ok {
		resp.Selected = &i
	}
	return resp
}

// listRequest is the query of GET /records.
type listRequest struct {
	Q      string `schema:"q"`
	Where  string `schema:"where"`
	Offset int    `schema:"offset"`
	Limit  int    `schema:"limit"` // 0 returns every row
}

// deleteRequest is the query of DELETE /records/{index}.
type deleteRequest struct {
	Confirm bool `schema:"confirm"`
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *formschema.Decoder {
	d := formschema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	return d
}

func decodeQuery(dst any, query url.Values) error {
	if err := queryDecoder.Decode(dst, query); err != nil {
		return errors.InvalidArgumentf("query: %v", err)
	}
	return nil
}

// handleList handles GET /records. The q and where parameters, when
// present, replace the current search term and filter expression.
func (c *Channel) handleList(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := r.URL.Query()
	var req listRequest
	if err := decodeQuery(&req, query); err != nil {
		c.writeError(w, err)
		return
	}
	if req.Offset < 0 || req.Limit < 0 {
		c.writeError(w, errors.InvalidArgumentf("offset and limit must not be negative"))
		return
	}

	if query.Has("q") {
		if err := c.editor.Search(req.Q); err != nil {
			c.writeError(w, err)
			return
		}
	}
	if query.Has("where") {
		if err := c.editor.Where(req.Where); err != nil {
			c.writeError(w, err)
			return
		}
	}
	if !c.editor.Loaded() {
		c.writeError(w, errors.FailedPrecondition("no document open"))
		return
	}

	rows := c.editor.Rows()
	total := len(rows)
	rows = rows[min(req.Offset, total):]
	if req.Limit > 0 && req.Limit < len(rows) {
		rows = rows[:req.Limit]
	}
	c.writeJSON(w, http.StatusOK, map[string]any{
		"profile": c.editor.Profile().Name,
		"sort":    c.editor.SortState(),
		"count":   total,
		"offset":  req.Offset,
		"rows":    rows,
	})
}

// handleSort handles POST /sort/{key}
func (c *Channel) handleSort(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := listing.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	if err := c.editor.Sort(key); err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]any{
		"sort": c.editor.SortState(),
		"rows": c.editor.Rows(),
	})
}

type recordResponse struct {
	Index  int          `json:"index"`
	Listed bool         `json:"listed"`
	Record *record.Map  `json:"record"`
	Fields []form.Field `json:"fields"`
}

// handleGet handles GET /records/{index}. The record becomes the selection.
func (c *Channel) handleGet(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := indexParam(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	if err := c.editor.Select(index); err != nil {
		c.writeError(w, err)
		return
	}
	resp, err := c.recordState(index)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, resp)
}

// handleUpdate handles PUT /records/{index}. The body maps field names to
// text, or to a list of {"item", "rate"} entries for drop tables. Fields
// not named keep their current value.
func (c *Channel) handleUpdate(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := indexParam(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writeError(w, errors.InvalidArgumentf("invalid JSON: %v", err))
		return
	}

	if err := c.editor.Select(index); err != nil {
		c.writeError(w, err)
		return
	}
	f, err := c.editor.Form()
	if err != nil {
		c.writeError(w, err)
		return
	}
	if err := applyBody(f, body); err != nil {
		c.writeError(w, err)
		return
	}
	if _, err := c.editor.SaveRecord(f); err != nil {
		c.writeError(w, err)
		return
	}

	resp, err := c.recordState(index)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, resp)
}

// applyBody writes the request fields into f.
func applyBody(f *form.Form, body map[string]json.RawMessage) error {
	for name, raw := range body {
		fd, ok := f.Field(name)
		if !ok {
			return errors.NotFoundf("unknown field %q", name)
		}

		if fd.Kind == schema.KindPairList {
			var drops []record.Drop
			if err := json.Unmarshal(raw, &drops); err != nil {
				return errors.InvalidArgumentf("%s: want a list of {\"item\", \"rate\"}: %v", name, err)
			}
			fd.Pairs = nil
			for _, d := range drops {
				if err := f.AddPair(name, d.Item, d.Rate); err != nil {
					return err
				}
			}
			continue
		}

		text, err := fieldText(raw)
		if err != nil {
			return errors.InvalidArgumentf("%s: %v", name, err)
		}
		if err := f.Set(name, text); err != nil {
			return err
		}
	}
	return nil
}

// fieldText accepts a JSON string, number, boolean or null as field text.
func fieldText(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("want text, got %T", v)
	}
}

// handleAdd handles POST /records
func (c *Channel) handleAdd(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.editor.AddNew()
	if err != nil {
		c.writeError(w, err)
		return
	}
	resp, err := c.recordState(index)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, resp)
}

// handleDelete handles DELETE /records/{index}. Without confirm=true the
// record is kept and the confirmation question is returned.
func (c *Channel) handleDelete(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := indexParam(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	var req deleteRequest
	if err := decodeQuery(&req, r.URL.Query()); err != nil {
		c.writeError(w, err)
		return
	}

	var question string
	deleted, err := c.editor.Delete(index, app.ConfirmFunc(func(q string) (bool, error) {
		question = q
		return req.Confirm, nil
	}))
	if err != nil {
		c.writeError(w, err)
		return
	}
	if !deleted {
		c.writeJSON(w, http.StatusOK, map[string]any{
			"deleted":  false,
			"question": question,
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSave handles POST /save. An optional {"path": "..."} body saves
// to another file.
func (c *Channel) handleSave(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var body struct {
		Path string `json:"path"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			c.writeError(w, errors.InvalidArgumentf("invalid JSON: %v", err))
			return
		}
	}

	var err error
	if body.Path != "" {
		err = c.editor.SaveAs(body.Path)
	} else {
		err = c.editor.Save()
	}
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, c.documentState())
}

// handleReload handles POST /reload
func (c *Channel) handleReload(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editor.Reload(); err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, c.documentState())
}

// handleValidate handles GET /validate
func (c *Channel) handleValidate(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.editor.Validate()
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, result)
}

func (c *Channel) recordState(index int) (recordResponse, error) {
	rec, err := c.editor.Record(index)
	if err != nil {
		return recordResponse{}, err
	}
	f := form.ToFields(rec, c.editor.Profile())
	return recordResponse{
		Index:  index,
		Listed: listing.Contains(c.editor.Rows(), index),
		Record: rec,
		Fields: f.Fields,
	}, nil
}

func indexParam(r *http.Request) (int, error) {
	s := chi.URLParam(r, "index")
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.InvalidArgumentf("record index %q is not a number", s)
	}
	return i, nil
}

// writeJSON writes a JSON response.
func (c *Channel) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn().Err(err).Msg("write response")
	}
}

// writeError writes an error response with the status for its code.
func (c *Channel) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeInternal || code == errors.CodeIO {
		c.logger.Error().Err(err).Msg("request failed")
	}
	c.writeJSON(w, code.HTTPStatus(), map[string]string{
		"error": errors.GetMessage(err),
		"code":  code.String(),
	})
}
