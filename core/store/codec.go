// Package store reads and writes database documents.
//
// Documents are YAML files with a Header mapping and a Body sequence of
// records. Mapping order is kept in both directions, aliases in the input
// are expanded, and output never contains anchors.
package store

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Indent is the number of spaces per nesting level in saved files.
const Indent = 2

// Decode parses a document. When p is nil the profile is looked up in reg
// by Header.Type. Records are returned sorted by identifier, ascending.
func Decode(data []byte, p *schema.Profile, reg *schema.Registry) (*record.Document, *schema.Profile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeFormat, "not a valid YAML document")
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil, errors.Format("document is empty")
	}

	v, err := record.FromNode(&root)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeFormat, "decode document")
	}
	top, ok := v.(*record.Map)
	if !ok {
		return nil, nil, errors.Format("document root must be a mapping")
	}

	doc, err := split(top)
	if err != nil {
		return nil, nil, err
	}

	p, err = resolve(doc, p, reg)
	if err != nil {
		return nil, nil, err
	}

	listing.Sort(doc.Records, listing.KeyID, false)
	return doc, p, nil
}

func split(top *record.Map) (*record.Document, error) {
	hv, ok := top.Get(record.SectionHeader)
	if !ok {
		return nil, errors.Format("missing Header")
	}
	header, ok := hv.(*record.Map)
	if !ok {
		return nil, errors.Format("Header must be a mapping")
	}

	doc := &record.Document{Header: header, Extra: record.NewMap()}

	switch body := mustGet(top, record.SectionBody).(type) {
	case nil:
		doc.Records = []*record.Map{}
	case []any:
		doc.Records = make([]*record.Map, 0, len(body))
		for i, e := range body {
			rec, ok := e.(*record.Map)
			if !ok {
				return nil, errors.Formatf("Body entry %d is not a mapping", i)
			}
			doc.Records = append(doc.Records, rec)
		}
	default:
		return nil, errors.Format("Body must be a sequence")
	}

	top.Range(func(k string, v any) bool {
		if k != record.SectionHeader && k != record.SectionBody {
			doc.Extra.Set(k, v)
		}
		return true
	})
	return doc, nil
}

func resolve(doc *record.Document, p *schema.Profile, reg *schema.Registry) (*schema.Profile, error) {
	got := doc.Type()
	if p != nil {
		if got != p.Type {
			return nil, errors.Formatf("Header.Type is %q, expected %s", got, p.Type).
				WithMeta("type", got)
		}
		return p, nil
	}

	if reg == nil {
		reg = schema.Default()
	}
	found, ok := reg.Lookup(got)
	if !ok {
		return nil, errors.Formatf("unsupported Header.Type %q", got).WithMeta("type", got)
	}
	return found, nil
}

// Encode renders doc as Header, Body, then any extra sections.
func Encode(doc *record.Document) ([]byte, error) {
	body := make([]any, len(doc.Records))
	for i, r := range doc.Records {
		body[i] = r
	}

	top := record.MapOf(record.SectionHeader, doc.Header, record.SectionBody, body)
	doc.Extra.Range(func(k string, v any) bool {
		top.Set(k, v)
		return true
	})

	node, err := record.ToNode(top)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(Indent)
	if err := enc.Encode(node); err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return buf.Bytes(), nil
}

func mustGet(m *record.Map, key string) any {
	v, _ := m.Get(key)
	return v
}
