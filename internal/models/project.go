package models

import "time"

// ProjectStatus is the review state of a submitted project.
type ProjectStatus string

const (
	ProjectStatusPending            ProjectStatus = "pending"
	ProjectStatusCodeReview         ProjectStatus = "processing:code_review"
	ProjectStatusPrizeReview        ProjectStatus = "processing:prize_category_review"
	ProjectStatusProcessed          ProjectStatus = "processed"
	ProjectStatusGitHubInaccessible ProjectStatus = "invalid:github_inaccessible"
	ProjectStatusRuleViolation      ProjectStatus = "invalid:rule_violation"
	ProjectStatusErrored            ProjectStatus = "errored"
)

// IsTerminal reports whether a run has nothing left to do for this status.
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case ProjectStatusProcessed, ProjectStatusGitHubInaccessible, ProjectStatusRuleViolation, ProjectStatusErrored:
		return true
	}
	return false
}

// IsProcessing reports whether a run is (or was last seen) mid-flight.
func (s ProjectStatus) IsProcessing() bool {
	return s == ProjectStatusCodeReview || s == ProjectStatusPrizeReview
}

// Project is a hackathon submission and the verdict produced for it.
type Project struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id,omitempty"`
	Name          string        `json:"name"`
	RepoURL       string        `json:"repo_url"`
	Description   string        `json:"description"`
	Status        ProjectStatus `json:"status"`
	StatusMessage *string       `json:"status_message"`
	PrizeSlugs    []string      `json:"prize_slugs"`

	DescriptionAccuracyLevel   string   `json:"description_accuracy_level"`
	DescriptionAccuracyMessage string   `json:"description_accuracy_message"`
	TechnicalComplexity        string   `json:"technical_complexity"`
	TechnicalComplexityMessage string   `json:"technical_complexity_message"`
	TechStack                  []string `json:"tech_stack"`

	PrizeResults map[string]PrizeReviewResult `json:"prize_results"`

	// Event is populated by GetProject; nil when the project has no event.
	Event *Event `json:"event,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can evolve a working copy without
// aliasing the original's slices and maps.
func (p Project) Clone() Project {
	c := p
	if p.StatusMessage != nil {
		msg := *p.StatusMessage
		c.StatusMessage = &msg
	}
	c.PrizeSlugs = append([]string(nil), p.PrizeSlugs...)
	c.TechStack = append([]string(nil), p.TechStack...)
	if p.PrizeResults != nil {
		c.PrizeResults = make(map[string]PrizeReviewResult, len(p.PrizeResults))
		for k, v := range p.PrizeResults {
			c.PrizeResults[k] = v
		}
	}
	if p.Event != nil {
		ev := *p.Event
		c.Event = &ev
	}
	return c
}

// ProjectUpdate is a partial update of a project row. Nil fields are left
// untouched. A non-nil StatusMessage pointing at "" clears the message.
type ProjectUpdate struct {
	Status        *ProjectStatus
	StatusMessage *string

	DescriptionAccuracyLevel   *string
	DescriptionAccuracyMessage *string
	TechnicalComplexity        *string
	TechnicalComplexityMessage *string
	TechStack                  *[]string

	// PrizeResults replaces the whole map. Only the run reset uses it;
	// incremental writes go through MergePrizeResults.
	PrizeResults map[string]PrizeReviewResult
}

// Apply returns a copy of p with the update applied.
func (u ProjectUpdate) Apply(p Project) Project {
	c := p.Clone()
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.StatusMessage != nil {
		if *u.StatusMessage == "" {
			c.StatusMessage = nil
		} else {
			msg := *u.StatusMessage
			c.StatusMessage = &msg
		}
	}
	if u.DescriptionAccuracyLevel != nil {
		c.DescriptionAccuracyLevel = *u.DescriptionAccuracyLevel
	}
	if u.DescriptionAccuracyMessage != nil {
		c.DescriptionAccuracyMessage = *u.DescriptionAccuracyMessage
	}
	if u.TechnicalComplexity != nil {
		c.TechnicalComplexity = *u.TechnicalComplexity
	}
	if u.TechnicalComplexityMessage != nil {
		c.TechnicalComplexityMessage = *u.TechnicalComplexityMessage
	}
	if u.TechStack != nil {
		c.TechStack = append([]string(nil), (*u.TechStack)...)
	}
	if u.PrizeResults != nil {
		c.PrizeResults = make(map[string]PrizeReviewResult, len(u.PrizeResults))
		for k, v := range u.PrizeResults {
			c.PrizeResults[k] = v
		}
	}
	return c
}
