// Package query filters records with Expr expressions.
//
// Expressions see the record merged over its profile template, so every
// template field is defined:
//
//	Level > 90 && Race == "Demon"
//	"Aggressive" in Modes
//	any(Drops, .Item == "Apple")
//	lower(AegisName) startsWith "poring"
package query

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// Service compiles and caches filter expressions.
type Service struct {
	cache   map[string]*vm.Program
	cacheMu sync.RWMutex

	envOptions []expr.Option
}

// NewService creates a query service.
func NewService() *Service {
	return &Service{
		cache: make(map[string]*vm.Program),
		envOptions: []expr.Option{
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
			expr.Function("lower", func(params ...any) (any, error) {
				if len(params) != 1 {
					return nil, fmt.Errorf("lower requires 1 argument")
				}
				return strings.ToLower(record.Text(params[0])), nil
			}),
			expr.Function("upper", func(params ...any) (any, error) {
				if len(params) != 1 {
					return nil, fmt.Errorf("upper requires 1 argument")
				}
				return strings.ToUpper(record.Text(params[0])), nil
			}),
		},
	}
}

// Compile checks an expression and caches the program.
func (s *Service) Compile(expression string) (*vm.Program, error) {
	s.cacheMu.RLock()
	program, ok := s.cache[expression]
	s.cacheMu.RUnlock()
	if ok {
		return program, nil
	}

	opts := append([]expr.Option{expr.Env(map[string]any{})}, s.envOptions...)
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "compile filter").
			WithMeta("expression", expression)
	}

	s.cacheMu.Lock()
	s.cache[expression] = program
	s.cacheMu.Unlock()
	return program, nil
}

// Match evaluates expression against rec.
func (s *Service) Match(expression string, rec *record.Map, p *schema.Profile) (bool, error) {
	program, err := s.Compile(expression)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, Env(rec, p))
	if err != nil {
		return false, errors.WrapWithCode(err, errors.CodeInvalidArgument, "run filter").
			WithMeta("expression", expression).
			WithMeta("id", rec.Int(record.KeyID))
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Predicate returns a listing predicate for expression. An empty
// expression returns nil.
func (s *Service) Predicate(expression string, p *schema.Profile) (listing.Predicate, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	if _, err := s.Compile(expression); err != nil {
		return nil, err
	}
	return func(rec *record.Map) (bool, error) {
		return s.Match(expression, rec, p)
	}, nil
}

// ClearCache drops every compiled program.
func (s *Service) ClearCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string]*vm.Program)
	s.cacheMu.Unlock()
}

// Env builds the evaluation environment: template defaults overlaid with
// the record, as plain maps and slices.
func Env(rec *record.Map, p *schema.Profile) map[string]any {
	merged := record.NewMap()
	if p != nil {
		merged = p.Template()
	}
	rec.Range(func(k string, v any) bool {
		merged.Set(k, v)
		return true
	})
	env, _ := plain(merged).(map[string]any)
	return env
}

func plain(v any) any {
	switch t := v.(type) {
	case *record.Map:
		out := make(map[string]any, t.Len())
		t.Range(func(k string, v any) bool {
			out[k] = plain(v)
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
