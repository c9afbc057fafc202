package entity

type PageInfo struct {
	URL   string
	Title string
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

type SelectionEventKind string

const (
	SelectionPreview   SelectionEventKind = "preview"
	SelectionCaptured  SelectionEventKind = "captured"
	SelectionCancelled SelectionEventKind = "cancelled"
)

// SelectionEvent is sent by the in-page overlay.
type SelectionEvent struct {
	Kind    SelectionEventKind `json:"kind"`
	Tag     string             `json:"tag,omitempty"`
	HTML    string             `json:"html,omitempty"`
	PageURL string             `json:"pageUrl,omitempty"`
	Rect    Rect               `json:"rect"`
}
