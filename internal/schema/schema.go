package schema

// Custom field types as reported by the ticketing system
const (
	TypeText     = "text"
	TypeShort    = "short_text"
	TypeDropdown = "drop_down"
	TypeLabels   = "labels"
	TypeNumber   = "number"
	TypeCheckbox = "checkbox"
)

// Option is one selectable value of a dropdown or labels field
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FieldSchema describes one custom field discovered from the ticketing
// system: its native identifier, name, type and, for dropdown-like fields,
// the available options.
type FieldSchema struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []Option `json:"options,omitempty"`
}

// HasOptions reports whether the field type carries an option list
func (f FieldSchema) HasOptions() bool {
	return f.Type == TypeDropdown || f.Type == TypeLabels
}
