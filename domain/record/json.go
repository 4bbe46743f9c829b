package record

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	first := true
	m.Range(func(k string, v any) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		var key, val []byte
		if key, err = json.Marshal(k); err != nil {
			return false
		}
		if val, err = json.Marshal(v); err != nil {
			return false
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
