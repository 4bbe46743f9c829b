package record

// Top-level document sections.
const (
	SectionHeader = "Header"
	SectionBody   = "Body"
)

// Document is a loaded database file: its header, the ordered Body records
// and any further top-level sections (such as Footer) kept verbatim.
type Document struct {
	Header  *Map
	Records []*Map
	Extra   *Map
}

// Type returns Header.Type.
func (d *Document) Type() string {
	if d == nil {
		return ""
	}
	return d.Header.String("Type")
}

// MaxID returns the largest record identifier and whether any record exists.
func (d *Document) MaxID() (int, bool) {
	if d == nil || len(d.Records) == 0 {
		return 0, false
	}
	maxID := d.Records[0].Int(KeyID)
	for _, r := range d.Records[1:] {
		if id := r.Int(KeyID); id > maxID {
			maxID = id
		}
	}
	return maxID, true
}

// IndexOf returns the storage index of the first record with the given
// identifier, or -1.
func (d *Document) IndexOf(id int) int {
	for i, r := range d.Records {
		if n, ok := IntValue(mustGet(r, KeyID)); ok && n == id {
			return i
		}
	}
	return -1
}

func mustGet(m *Map, key string) any {
	v, _ := m.Get(key)
	return v
}
