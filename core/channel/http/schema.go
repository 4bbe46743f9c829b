package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/pkg/errors"
)

// SchemaHandler handles profile introspection requests.
// These endpoints let clients discover the editable fields of each
// database kind.
type SchemaHandler struct {
	registry *schema.Registry
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(registry *schema.Registry) *SchemaHandler {
	return &SchemaHandler{
		registry: registry,
	}
}

// Routes returns a router with all schema routes.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listProfiles)
	r.Get("/{profile}", h.getProfileSchema)
	return r
}

// ProfileSummary is one entry of the profile list.
type ProfileSummary struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Fields int    `json:"fields"`
}

// FieldSchema describes one template field.
type FieldSchema struct {
	Name        string              `json:"name"`
	Kind        schema.Kind         `json:"kind"`
	Default     any                 `json:"default"`
	Retain      bool                `json:"retain,omitempty"`
	DropIfEmpty bool                `json:"drop_if_empty,omitempty"`
	Block       bool                `json:"block,omitempty"`
	SQLType     string              `json:"sql_type"`
	Constraints []schema.Constraint `json:"constraints,omitempty"`
}

// ProfileSchema is the full description of one profile.
type ProfileSchema struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Title        string        `json:"title"`
	DefaultID    int           `json:"default_id"`
	NewAegisName string        `json:"new_aegis_name"`
	NewName      string        `json:"new_name"`
	DropDefaults bool          `json:"drop_defaults"`
	Fields       []FieldSchema `json:"fields"`
}

// listProfiles handles GET /_schema
func (h *SchemaHandler) listProfiles(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	summaries := make([]ProfileSummary, 0, len(names))
	for _, name := range names {
		p, _ := h.registry.Get(name)
		summaries = append(summaries, ProfileSummary{
			Name:   p.Name,
			Type:   p.Type,
			Title:  p.Title,
			Fields: len(p.Fields),
		})
	}

	writeSchemaJSON(w, http.StatusOK, map[string]any{
		"profiles": summaries,
		"count":    len(summaries),
	})
}

// getProfileSchema handles GET /_schema/{profile}
func (h *SchemaHandler) getProfileSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")

	p, ok := h.registry.Get(name)
	if !ok {
		// the header type is accepted too
		p, ok = h.registry.Lookup(name)
	}
	if !ok {
		err := errors.NotFoundf("unknown profile %q", name)
		writeSchemaJSON(w, http.StatusNotFound, map[string]string{
			"error": errors.GetMessage(err),
			"code":  errors.GetCode(err).String(),
		})
		return
	}

	writeSchemaJSON(w, http.StatusOK, BuildProfileSchema(p))
}

// BuildProfileSchema converts a profile to its API description.
func BuildProfileSchema(p *schema.Profile) ProfileSchema {
	fields := make([]FieldSchema, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, FieldSchema{
			Name:        f.Name,
			Kind:        f.Kind,
			Default:     f.Default,
			Retain:      f.Retain,
			DropIfEmpty: f.DropIfEmpty,
			Block:       f.IsBlock(),
			SQLType:     f.SQLType(),
			Constraints: f.Constraints,
		})
	}

	return ProfileSchema{
		Name:         p.Name,
		Type:         p.Type,
		Title:        p.Title,
		DefaultID:    p.DefaultID,
		NewAegisName: p.NewAegisName,
		NewName:      p.NewName,
		DropDefaults: p.DropDefaults,
		Fields:       fields,
	}
}

func writeSchemaJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
