package entity

type FieldKind string

const (
	FieldKindTextInput FieldKind = "text_input"
	FieldKindTextarea  FieldKind = "textarea"
	FieldKindSelect    FieldKind = "select"
	// FieldKindOther covers inputs that keep their ID but are never written (checkbox, file, ...).
	FieldKindOther FieldKind = "other"
)

// TextInputTypes are the input types written by incremental typing.
var TextInputTypes = []string{
	"text", "number", "email", "password", "url", "tel", "search",
	"date", "datetime-local", "month", "time", "week",
}

// Field is one fillable control discovered in a captured subtree.
type Field struct {
	ID         int       `json:"fieldId"`
	Kind       FieldKind `json:"kind"`
	Tag        string    `json:"tag"`
	InputType  string    `json:"inputType,omitempty"`
	Selector   string    `json:"selector"`
	Occurrence int       `json:"occurrence"`
	RawMarkup  string    `json:"rawMarkup"`
}

// Snapshot is the normalized markup of a captured element and its field table.
type Snapshot struct {
	Markup string  `json:"markup"`
	Fields []Field `json:"fields"`
}

func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Fields) == 0
}

// Field returns the field with the given id.
func (s *Snapshot) Field(id int) (Field, bool) {
	if s == nil || id < 0 || id >= len(s.Fields) {
		return Field{}, false
	}
	return s.Fields[id], true
}
