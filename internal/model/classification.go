package model

import "time"

// Category is one of the five automation-impact categories an artifact can
// be assigned to.
type Category string

const (
	CategoryReplace   Category = "replace"
	CategoryAugment   Category = "augment"
	CategoryNewTasks  Category = "new_tasks"
	CategoryHumanOnly Category = "human_only"
	CategoryGeneral   Category = "general"
)

// AllCategories lists every valid impact category.
func AllCategories() []Category {
	return []Category{
		CategoryReplace,
		CategoryAugment,
		CategoryNewTasks,
		CategoryHumanOnly,
		CategoryGeneral,
	}
}

// Valid reports whether c is one of the known impact categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryReplace, CategoryAugment, CategoryNewTasks, CategoryHumanOnly, CategoryGeneral:
		return true
	}
	return false
}

// Classification is a category judgment attached to an Artifact. Records are
// append-only: a re-run with a different model appends a new row rather than
// overwriting history.
type Classification struct {
	ID           string    `json:"id,omitempty"`
	ArtifactID   string    `json:"artifact_id"`
	Category     Category  `json:"category"`
	Confidence   float64   `json:"confidence"`
	Rationale    string    `json:"rationale"`
	ModelUsed    string    `json:"model_used"`
	ClassifiedAt time.Time `json:"classified_at"`
}
