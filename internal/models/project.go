package models

// MetaVersion tags the split meta/blob storage format. Version 1 was a
// single combined record holding the PDF bytes inline.
const MetaVersion = 2

// ProjectMeta is the persisted non-binary state for one document. It is
// always saved independently of the PDF blob, which may be absent (trimmed)
// while the metadata stays loadable.
type ProjectMeta struct {
	Version         int                  `json:"version"`
	Timestamp       int64                `json:"timestamp"` // unix milliseconds
	PDFName         string               `json:"pdfName"`
	Cards           []Card               `json:"cards"`
	Annotations     map[int][]Annotation `json:"annotations"`
	CurrentPage     int                  `json:"currentPage"`
	Stats           *GlobalStats         `json:"stats,omitempty"`
	Prompts         map[string]string    `json:"prompts,omitempty"`
	PromptsModified map[string]bool      `json:"promptsModified,omitempty"`
}

// Project is the combined view the persistence gateway hands back: metadata
// joined with the (possibly absent) source document bytes.
type Project struct {
	ProjectMeta
	PDFFile []byte `json:"-"`
}

// GlobalStats are aggregate counters across all documents. Mutated
// additively by generation completions and the study timer; only an explicit
// reset decrements them.
type GlobalStats struct {
	TotalCards    int            `json:"totalCards"`
	TotalFiles    int            `json:"totalFiles"`
	StreakDays    int            `json:"streakDays"`
	StudySeconds  int            `json:"studySeconds"`
	LastStudyDate string         `json:"lastStudyDate,omitempty"` // YYYY-MM-DD
	Activity      map[string]int `json:"activity,omitempty"`
}
