package form

import (
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
)

// Clean returns the sparse form of rec under p's rules:
//
//   - null values and empty mappings are dropped;
//   - with DropDefaults, values equal to the template default are dropped;
//   - fields marked DropIfEmpty are dropped when empty;
//   - retained fields are never dropped.
//
// Key order is kept. rec is not modified.
func Clean(rec *record.Map, p *schema.Profile) *record.Map {
	out := record.NewMap()
	rec.Range(func(k string, v any) bool {
		if !drop(p, k, v) {
			out.Set(k, v)
		}
		return true
	})
	return out
}

func drop(p *schema.Profile, key string, v any) bool {
	f, declared := p.Field(key)
	if declared && f.Retain {
		return false
	}
	if v == nil {
		return true
	}
	if m, ok := v.(*record.Map); ok && m.Len() == 0 {
		return true
	}
	if !declared {
		return false
	}
	if p.DropDefaults && record.Equal(v, f.Default) {
		return true
	}
	return f.DropIfEmpty && record.IsEmpty(v)
}
