package schema

import (
	"fmt"

	"github.com/artpar/dbedit/domain/record"
)

// Profile is the definition of one database kind: the header tag it accepts,
// the record template, and the rules used when records are created and
// cleaned.
type Profile struct {
	// Name is the short profile name (e.g., "item", "mob").
	Name string `yaml:"profile"`

	// Type is the required Header.Type value (e.g., "ITEM_DB").
	Type string `yaml:"type"`

	// Title is used by front-ends for headings.
	Title string `yaml:"title,omitempty"`

	// DefaultID is the identifier given to the first record of an empty file.
	DefaultID int `yaml:"default_id"`

	// NewAegisName is a format string taking the new identifier.
	NewAegisName string `yaml:"new_aegis_name"`

	// NewName is the display name of a freshly added record.
	NewName string `yaml:"new_name"`

	// DropDefaults removes fields equal to their template default on save.
	DropDefaults bool `yaml:"drop_defaults,omitempty"`

	// Fields is the ordered template.
	Fields []Field `yaml:"fields"`

	index map[string]int
}

// Field returns the template field with the given name.
func (p *Profile) Field(name string) (Field, bool) {
	p.buildIndex()
	i, ok := p.index[name]
	if !ok {
		return Field{}, false
	}
	return p.Fields[i], true
}

// KindOf returns the declared kind of name, or the kind inferred from value
// when the template does not declare it.
func (p *Profile) KindOf(name string, value any) Kind {
	if f, ok := p.Field(name); ok {
		return f.Kind
	}
	return InferKind(value)
}

// Template returns a fresh copy of the template defaults in field order.
func (p *Profile) Template() *record.Map {
	m := record.NewMap()
	for _, f := range p.Fields {
		m.Set(f.Name, record.CloneValue(f.Default))
	}
	return m
}

// Default returns a copy of the default value for name.
func (p *Profile) Default(name string) (any, bool) {
	f, ok := p.Field(name)
	if !ok {
		return nil, false
	}
	return record.CloneValue(f.Default), true
}

// NewRecord returns the sparse record created by "add" for id.
func (p *Profile) NewRecord(id int) *record.Map {
	return record.MapOf(
		record.KeyID, id,
		record.KeyAegisName, fmt.Sprintf(p.NewAegisName, id),
		record.KeyName, p.NewName,
	)
}

func (p *Profile) buildIndex() {
	if p.index != nil {
		return
	}
	p.index = make(map[string]int, len(p.Fields))
	for i, f := range p.Fields {
		p.index[f.Name] = i
	}
}
