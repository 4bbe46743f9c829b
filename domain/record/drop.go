package record

// Drop rate bounds accepted when a drop entry is entered.
const (
	MinRate = 1
	MaxRate = 10000
)

// Drop is one entry of a drop table: an item identifier and its rate.
type Drop struct {
	Item string `json:"item" yaml:"Item"`
	Rate int    `json:"rate" yaml:"Rate"`
}

// DropsFrom reads a drop table value (a sequence of {Item, Rate} maps).
// Entries that are not maps are skipped.
func DropsFrom(v any) []Drop {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	drops := make([]Drop, 0, len(seq))
	for _, e := range seq {
		m, ok := e.(*Map)
		if !ok {
			continue
		}
		item, _ := m.Get("Item")
		drops = append(drops, Drop{
			Item: scalarText(item),
			Rate: m.Int("Rate"),
		})
	}
	return drops
}

// DropsValue converts drops back into the record representation.
func DropsValue(drops []Drop) []any {
	out := make([]any, len(drops))
	for i, d := range drops {
		out[i] = MapOf("Item", d.Item, "Rate", d.Rate)
	}
	return out
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return Text(t)
	}
}
