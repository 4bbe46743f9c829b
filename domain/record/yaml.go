package record

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MaxAliasNodes caps the number of nodes that alias expansion may add to
// one decoded value.
const MaxAliasNodes = 1 << 20

// FromNode converts a YAML node tree into record values. Mappings become
// *Map in document order, sequences become []any and aliases are expanded
// into independent copies. An alias inside its own anchor, or aliases
// expanding past MaxAliasNodes nodes, is an error.
func FromNode(n *yaml.Node) (any, error) {
	d := &nodeDecoder{open: map[*yaml.Node]bool{}}
	return d.decode(n)
}

type nodeDecoder struct {
	open    map[*yaml.Node]bool // anchored nodes on the decode stack
	depth   int                 // nesting of alias expansions
	aliased int                 // nodes decoded through an alias
}

func (d *nodeDecoder) decode(n *yaml.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	if d.depth > 0 {
		d.aliased++
		if d.aliased > MaxAliasNodes {
			return nil, fmt.Errorf("line %d: aliases expand past %d nodes", n.Line, MaxAliasNodes)
		}
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.decode(n.Content[0])

	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: unknown anchor %q", n.Line, n.Value)
		}
		if d.open[n.Alias] {
			return nil, fmt.Errorf("line %d: anchor %q contains itself", n.Line, n.Value)
		}
		d.depth++
		v, err := d.decode(n.Alias)
		d.depth--
		return v, err

	case yaml.MappingNode:
		if n.Anchor != "" {
			d.open[n] = true
			defer delete(d.open, n)
		}

		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			v, err := d.decode(valNode)
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, v)
		}
		return m, nil

	case yaml.SequenceNode:
		if n.Anchor != "" {
			d.open[n] = true
			defer delete(d.open, n)
		}

		seq := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.decode(c)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}

	return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

// ToNode converts a record value into a fresh YAML node. Every call builds
// new nodes, so repeated sub-structures are written out in full.
func ToNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil

	case *Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		t.Range(func(k string, val any) bool {
			var valNode *yaml.Node
			valNode, err = ToNode(val)
			if err != nil {
				err = fmt.Errorf("%s: %w", k, err)
				return false
			}
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				valNode,
			)
			return true
		})
		if err != nil {
			return nil, err
		}
		return n, nil

	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, e := range t {
			c, err := ToNode(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, c)
		}
		return n, nil

	default:
		n := &yaml.Node{}
		if err := n.Encode(t); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// MarshalYAML implements yaml.Marshaler, keeping insertion order.
func (m *Map) MarshalYAML() (any, error) {
	return ToNode(m)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Map) UnmarshalYAML(n *yaml.Node) error {
	v, err := FromNode(n)
	if err != nil {
		return err
	}
	src, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	*m = *src
	return nil
}
