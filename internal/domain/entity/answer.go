package entity

// NotApplicable is the value the model is told to use when no data fits a field.
const NotApplicable = "N/A"

type Answer struct {
	FieldID int    `json:"fieldId"`
	Value   string `json:"value"`
}

// FillPair is an answer joined against the field table.
type FillPair struct {
	FieldID    int       `json:"fieldId"`
	Kind       FieldKind `json:"kind"`
	Selector   string    `json:"selector"`
	Occurrence int       `json:"occurrence"`
	Value      string    `json:"value"`
}

type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
)

const (
	ReasonNotFound           = "not_found"
	ReasonNoMatchingOption   = "no_matching_option"
	ReasonUnsupportedControl = "unsupported_control"
)

type FieldOutcome struct {
	FieldID  int           `json:"fieldId"`
	Selector string        `json:"selector"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
}

type FillReport struct {
	Outcomes []FieldOutcome `json:"outcomes"`
}

func (r FillReport) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeApplied {
			n++
		}
	}
	return n
}

func (r FillReport) Skipped() int {
	return len(r.Outcomes) - r.Applied()
}
