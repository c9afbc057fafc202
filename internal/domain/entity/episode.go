package entity

import "time"

type EpisodeStatus string

const (
	EpisodeStatusPending   EpisodeStatus = "pending"
	EpisodeStatusRunning   EpisodeStatus = "running"
	EpisodeStatusCompleted EpisodeStatus = "completed"
	EpisodeStatusFailed    EpisodeStatus = "failed"
)

// CapturedElement is what the page reports when the user clicks an element.
type CapturedElement struct {
	HTML    string `json:"html"`
	Tag     string `json:"tag"`
	PageURL string `json:"pageUrl"`
	Rect    Rect   `json:"rect"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Episode is one pick-element-through-write-back run.
type Episode struct {
	ID          string
	PageURL     string
	Snapshot    *Snapshot
	Instruction string
	Model       Model
	Answers     []Answer
	Pairs       []FillPair
	Report      FillReport
	PreviewPath string
	Status      EpisodeStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}
