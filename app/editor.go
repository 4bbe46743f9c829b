// Package app contains the Editor, the state behind every front-end.
package app

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/adapters/metrics"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/query"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/core/store"
	"github.com/artpar/dbedit/core/validation"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// NoSelection is the selected index when no record is selected.
const NoSelection = -1

// headerVersion is written into the Header of documents created in memory.
const headerVersion = 1

// Confirmer answers yes/no questions, such as whether to delete a record.
//
//go:generate mockgen -destination=mock/mock_confirmer.go -package=appmock github.com/artpar/dbedit/app Confirmer
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(question string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(question string) (bool, error) {
	return f(question)
}

// EditorOptions configures an Editor.
type EditorOptions struct {
	Store   *store.Store
	Query   *query.Service
	Metrics *metrics.Collector // optional
	Logger  zerolog.Logger

	// Profile forces the profile of opened documents. Nil detects it from
	// Header.Type.
	Profile *schema.Profile

	Form form.Options
}

// Editor holds one open document and the list, selection and form state
// around it. It is not safe for concurrent use; front-ends that serve
// several callers serialize access.
type Editor struct {
	store   *store.Store
	query   *query.Service
	metrics *metrics.Collector
	logger  zerolog.Logger
	forced  *schema.Profile
	opts    form.Options

	profile  *schema.Profile
	doc      *record.Document
	path     string
	sort     listing.State
	search   string
	where    string
	pred     listing.Predicate
	rows     []listing.Row
	selected int
	dirty    bool

	watcher  *store.Watcher
	external atomic.Bool
}

// NewEditor creates an editor with no document open.
func NewEditor(opts EditorOptions) *Editor {
	st := opts.Store
	if st == nil {
		st = store.New(store.Options{Logger: opts.Logger})
	}
	q := opts.Query
	if q == nil {
		q = query.NewService()
	}

	return &Editor{
		store:    st,
		query:    q,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("session", uuid.NewString()).Logger(),
		forced:   opts.Profile,
		opts:     opts.Form,
		sort:     listing.DefaultState(),
		selected: NoSelection,
	}
}

// Open loads the document at path. When loading fails the previously
// open document stays open and unchanged.
func (e *Editor) Open(path string) error {
	doc, p, err := e.store.Load(path, e.forced)
	if err != nil {
		if e.metrics != nil {
			e.metrics.LoadErrors.WithLabelValues(errors.GetCode(err).String()).Inc()
		}
		return err
	}

	samePath := path == e.path
	e.replace(doc, p, path)
	if e.watcher != nil && !samePath {
		e.stopWatch()
		if err := e.Watch(); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("could not watch document")
		}
	} else if e.watcher != nil {
		e.watcher.Mark()
	}

	if e.metrics != nil {
		e.metrics.DocumentsLoaded.WithLabelValues(p.Name).Inc()
	}
	return nil
}

// NewDocument starts an empty, unsaved document of profile p.
func (e *Editor) NewDocument(p *schema.Profile) {
	doc := &record.Document{
		Header:  record.MapOf("Type", p.Type, "Version", headerVersion),
		Records: []*record.Map{},
		Extra:   record.NewMap(),
	}
	e.stopWatch()
	e.replace(doc, p, "")
	e.logger.Info().Str("profile", p.Name).Msg("new document")
}

func (e *Editor) replace(doc *record.Document, p *schema.Profile, path string) {
	e.doc = doc
	e.profile = p
	e.path = path
	e.sort = listing.DefaultState()
	e.search = ""
	e.where = ""
	e.pred = nil
	e.selected = NoSelection
	e.dirty = false
	e.external.Store(false)
	e.sort.Apply(e.doc.Records)
	e.project()
	e.updateRecordGauge()
}

// Reload opens the current file again, discarding unsaved changes.
func (e *Editor) Reload() error {
	if e.path == "" {
		return errors.FailedPrecondition("document has no file to reload")
	}
	return e.Open(e.path)
}

// Loaded reports whether a document is open.
func (e *Editor) Loaded() bool {
	return e.doc != nil
}

// Document returns the open document.
func (e *Editor) Document() *record.Document {
	return e.doc
}

// Profile returns the profile of the open document.
func (e *Editor) Profile() *schema.Profile {
	return e.profile
}

// Path returns the file the document is saved to.
func (e *Editor) Path() string {
	return e.path
}

// Dirty reports unsaved changes.
func (e *Editor) Dirty() bool {
	return e.dirty
}

// SetFormOptions changes how later record saves coerce field text.
func (e *Editor) SetFormOptions(opts form.Options) {
	e.opts = opts
}

// Rows returns the current projection.
func (e *Editor) Rows() []listing.Row {
	return e.rows
}

// SortState returns the active sort key and direction.
func (e *Editor) SortState() listing.State {
	return e.sort
}

// SearchTerm returns the active search term.
func (e *Editor) SearchTerm() string {
	return e.search
}

// WhereExpression returns the active filter expression.
func (e *Editor) WhereExpression() string {
	return e.where
}

// Sort toggles the sort for key and reorders storage. The selection
// follows the selected record to its new storage index.
func (e *Editor) Sort(key listing.Key) error {
	if err := e.requireDocument(); err != nil {
		return err
	}

	var sel *record.Map
	if e.selected != NoSelection {
		sel = e.doc.Records[e.selected]
	}

	e.sort = e.sort.Toggle(key)
	e.sort.Apply(e.doc.Records)
	e.selected = indexOf(e.doc.Records, sel)
	e.project()

	e.logger.Debug().
		Str("key", string(key)).
		Bool("descending", e.sort.Descending).
		Msg("records sorted")
	return nil
}

// Search sets the substring filter. A selected record that no longer
// appears in the list is deselected.
func (e *Editor) Search(term string) error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	e.search = term
	return e.reproject()
}

// Where sets the expression filter. An invalid expression leaves the
// previous filter active.
func (e *Editor) Where(expression string) error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	pred, err := e.query.Predicate(expression, e.profile)
	if err != nil {
		return err
	}

	prevWhere, prevPred := e.where, e.pred
	e.where, e.pred = expression, pred
	if err := e.reproject(); err != nil {
		e.where, e.pred = prevWhere, prevPred
		e.project()
		return err
	}
	return nil
}

// Select selects the record at storage index, which must be listed in the
// current projection.
func (e *Editor) Select(index int) error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	if !listing.Contains(e.rows, index) {
		return errors.NotFoundf("no listed record at index %d", index).WithMeta("index", index)
	}
	e.selected = index
	return nil
}

// Selected returns the selected storage index.
func (e *Editor) Selected() (int, bool) {
	return e.selected, e.selected != NoSelection
}

// Record returns the record at storage index.
func (e *Editor) Record(index int) (*record.Map, error) {
	if err := e.requireDocument(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(e.doc.Records) {
		return nil, errors.NotFoundf("no record at index %d", index).WithMeta("index", index)
	}
	return e.doc.Records[index], nil
}

// Find returns the storage index of the record with identifier id.
func (e *Editor) Find(id int) (int, error) {
	if err := e.requireDocument(); err != nil {
		return NoSelection, err
	}
	i := e.doc.IndexOf(id)
	if i < 0 {
		return NoSelection, errors.NotFoundf("no record with Id %d", id).WithMeta("id", id)
	}
	return i, nil
}

// Form returns the editable form of the selected record.
func (e *Editor) Form() (*form.Form, error) {
	if err := e.requireSelection(); err != nil {
		return nil, err
	}
	return form.ToFields(e.doc.Records[e.selected], e.profile), nil
}

// SaveRecord converts f and replaces the selected record with the result.
// On error storage is unchanged. The selection stays on the same storage
// index while the record is listed and is cleared when the edit hides it.
func (e *Editor) SaveRecord(f *form.Form) (*record.Map, error) {
	if err := e.requireSelection(); err != nil {
		return nil, err
	}

	rec, err := form.Record(f, e.profile, e.opts)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ValidationErrors.WithLabelValues(e.profile.Name).Inc()
		}
		e.logger.Warn().Err(err).Int("index", e.selected).Msg("record rejected")
		return nil, err
	}

	index := e.selected
	e.doc.Records[index] = rec
	e.dirty = true
	e.project()

	if e.metrics != nil {
		e.metrics.RecordsSaved.WithLabelValues(e.profile.Name).Inc()
	}
	e.logger.Info().
		Int("index", index).
		Int("id", rec.Int(record.KeyID)).
		Msg("record saved")
	return rec, nil
}

// AddNew appends a record with the next free identifier, re-applies the
// current sort and selects the new record when it is listed. It returns
// the new record's storage index.
func (e *Editor) AddNew() (int, error) {
	if err := e.requireDocument(); err != nil {
		return NoSelection, err
	}

	id := e.profile.DefaultID
	if maxID, ok := e.doc.MaxID(); ok {
		if maxID == math.MaxInt {
			return NoSelection, errors.Validationf("no identifier above %d is available", maxID).
				WithMeta("id", maxID)
		}
		id = maxID + 1
	}

	rec := e.profile.NewRecord(id)
	e.doc.Records = append(e.doc.Records, rec)
	e.sort.Apply(e.doc.Records)
	e.project()

	index := indexOf(e.doc.Records, rec)
	e.selected = NoSelection
	if listing.Contains(e.rows, index) {
		e.selected = index
	}
	e.dirty = true

	if e.metrics != nil {
		e.metrics.RecordsAdded.WithLabelValues(e.profile.Name).Inc()
	}
	e.updateRecordGauge()
	e.logger.Info().Int("index", index).Int("id", id).Msg("record added")
	return index, nil
}

// Delete asks c to confirm and removes the record at storage index. It
// reports whether the record was removed.
func (e *Editor) Delete(index int, c Confirmer) (bool, error) {
	rec, err := e.Record(index)
	if err != nil {
		return false, err
	}

	question := fmt.Sprintf("Delete %s (%s)?", record.Text(mustGet(rec, record.KeyID)), rec.String(record.KeyAegisName))
	ok, err := c.Confirm(question)
	if err != nil {
		return false, errors.Wrap(err, "confirm delete")
	}
	if !ok {
		return false, nil
	}

	e.doc.Records = append(e.doc.Records[:index], e.doc.Records[index+1:]...)
	e.selected = NoSelection
	e.dirty = true
	e.project()

	if e.metrics != nil {
		e.metrics.RecordsDeleted.WithLabelValues(e.profile.Name).Inc()
	}
	e.updateRecordGauge()
	e.logger.Info().Int("index", index).Int("id", rec.Int(record.KeyID)).Msg("record deleted")
	return true, nil
}

// Save writes the document to its file.
func (e *Editor) Save() error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	if e.path == "" {
		return errors.FailedPrecondition("document has no file name; use save as")
	}
	return e.write(e.path)
}

// SaveAs writes the document to path, which becomes its file.
func (e *Editor) SaveAs(path string) error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	if path == "" {
		return errors.InvalidArgumentf("file name is required")
	}
	if err := e.write(path); err != nil {
		return err
	}

	if path != e.path {
		e.path = path
		if e.watcher != nil {
			e.stopWatch()
			if err := e.Watch(); err != nil {
				e.logger.Warn().Err(err).Str("path", path).Msg("could not watch document")
			}
		}
	}
	return nil
}

func (e *Editor) write(path string) error {
	if err := e.store.Save(e.doc, path); err != nil {
		if e.metrics != nil {
			e.metrics.SaveErrors.Inc()
		}
		return err
	}

	e.dirty = false
	if e.watcher != nil && path == e.path {
		e.watcher.Mark()
		e.external.Store(false)
	}
	if e.metrics != nil {
		e.metrics.FilesSaved.WithLabelValues(e.profile.Name).Inc()
		e.metrics.LastSave.SetToCurrentTime()
	}
	return nil
}

// Validate checks the whole document.
func (e *Editor) Validate() (validation.Result, error) {
	if err := e.requireDocument(); err != nil {
		return validation.Result{}, err
	}
	return validation.New(e.profile).ValidateDocument(e.doc), nil
}

// Watch starts reporting changes other programs make to the open file.
func (e *Editor) Watch() error {
	if e.path == "" {
		return errors.FailedPrecondition("document has no file to watch")
	}
	w, err := store.NewWatcher(e.path, e.logger, func(string) {
		e.external.Store(true)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	e.watcher = w
	return nil
}

// ChangedOnDisk reports whether the file was changed by another program
// since it was opened or saved.
func (e *Editor) ChangedOnDisk() bool {
	return e.external.Load()
}

// Close stops watching the file.
func (e *Editor) Close() {
	e.stopWatch()
}

func (e *Editor) stopWatch() {
	if e.watcher != nil {
		e.watcher.Stop()
		e.watcher = nil
	}
}

func (e *Editor) requireDocument() error {
	if e.doc == nil {
		return errors.FailedPrecondition("no document open")
	}
	return nil
}

func (e *Editor) requireSelection() error {
	if err := e.requireDocument(); err != nil {
		return err
	}
	if e.selected == NoSelection {
		return errors.FailedPrecondition("no record selected")
	}
	return nil
}

// project rebuilds the rows; a failing filter expression lists nothing.
func (e *Editor) project() {
	if err := e.reproject(); err != nil {
		e.logger.Warn().Err(err).Str("where", e.where).Msg("filter failed")
	}
}

func (e *Editor) reproject() error {
	var preds []listing.Predicate
	if e.pred != nil {
		preds = append(preds, e.pred)
	}
	rows, err := listing.Project(e.doc.Records, e.search, preds...)
	if err != nil {
		e.rows = []listing.Row{}
		return err
	}
	e.rows = rows
	if e.selected != NoSelection && !listing.Contains(e.rows, e.selected) {
		e.selected = NoSelection
	}
	return nil
}

func (e *Editor) updateRecordGauge() {
	if e.metrics != nil && e.profile != nil {
		e.metrics.Records.WithLabelValues(e.profile.Name).Set(float64(len(e.doc.Records)))
	}
}

func indexOf(records []*record.Map, rec *record.Map) int {
	if rec == nil {
		return NoSelection
	}
	for i, r := range records {
		if r == rec {
			return i
		}
	}
	return NoSelection
}

func mustGet(m *record.Map, key string) any {
	v, _ := m.Get(key)
	return v
}
