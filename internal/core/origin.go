package core

import (
	"encoding/json"
	"maps"
)

// Origin records what produced a change, for example a file upload or a
// history restore. Fields other than kind are kept as given.
type Origin struct {
	Kind  string
	Extra map[string]any
}

func (o Origin) MarshalJSON() ([]byte, error) {
	out := maps.Clone(o.Extra)
	if out == nil {
		out = make(map[string]any, 1)
	}
	out["kind"] = o.Kind
	return json.Marshal(out)
}

func (o *Origin) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	kind, _ := fields["kind"].(string)
	delete(fields, "kind")
	if len(fields) == 0 {
		fields = nil
	}
	*o = Origin{Kind: kind, Extra: fields}
	return nil
}
