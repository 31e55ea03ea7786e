package models

import "time"

// PrizeResultStatus is the per-prize verdict state.
type PrizeResultStatus string

const (
	PrizeResultProcessing PrizeResultStatus = "processing"
	PrizeResultValid      PrizeResultStatus = "valid"
	PrizeResultInvalid    PrizeResultStatus = "invalid"
	PrizeResultErrored    PrizeResultStatus = "errored"
)

// PrizeReviewResult is stored in Project.PrizeResults keyed by prize slug.
type PrizeReviewResult struct {
	Status  PrizeResultStatus `json:"status"`
	Message string            `json:"message"`
}

// PrizeCategory is a prize a project may opt into.
type PrizeCategory struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`   // guidance given to the model when judging eligibility
	Keywords  []string  `json:"keywords"` // optional cheap pre-filter; empty means always eligible
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
