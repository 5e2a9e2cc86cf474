package models

// Card types.
const (
	CardTypeBasic = "basic"
	CardTypeCloze = "cloze"
)

// PageUnsorted groups cards that have not been assigned to a page.
const PageUnsorted = 0

// Card is one study unit. For basic cards Front/Back hold question/answer;
// for cloze cards Text holds the body with {{cN::content}} markers and Back
// carries optional extra context only.
type Card struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Front       string   `json:"front"`
	Back        string   `json:"back"`
	Text        string   `json:"text"`
	Tags        []string `json:"tags"`
	FrontImages []string `json:"frontImages,omitempty"`
	BackImages  []string `json:"backImages,omitempty"`
	PageNumber  int      `json:"pageNumber"`
	FileName    string   `json:"fileName,omitempty"`
}

// RawCard is what a backend adapter returns before the orchestrator stamps
// an id, page number and file name.
type RawCard struct {
	Type  string   `json:"type"`
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Text  string   `json:"text"`
	Tags  []string `json:"tags"`
}

// CardUpdate carries a partial edit. Nil fields are left untouched.
type CardUpdate struct {
	Type        *string   `json:"type"`
	Front       *string   `json:"front"`
	Back        *string   `json:"back"`
	Text        *string   `json:"text"`
	Tags        *[]string `json:"tags"`
	FrontImages *[]string `json:"frontImages"`
	BackImages  *[]string `json:"backImages"`
	PageNumber  *int      `json:"pageNumber"`
}

// Annotation is a freehand mark on one page. Appended on stroke completion,
// never mutated afterwards.
type Annotation struct {
	Type    string  `json:"type"` // currently only "path"
	Points  []Point `json:"points"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
