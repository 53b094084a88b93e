package model

import "time"

// RunStatus represents the current state of a replacement discovery run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusSourcing RunStatus = "sourcing"
	RunStatusScoring  RunStatus = "scoring"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ReplacementRun is the persisted record of one discovery run.
type ReplacementRun struct {
	ID            string                 `json:"id"`
	Request       ReplacementRequest     `json:"request"`
	Original      *Product               `json:"original,omitempty"`
	Criteria      ReplacementCriteria    `json:"criteria"`
	Status        RunStatus              `json:"status"`
	CandidatePool int                    `json:"candidate_pool"`
	Candidates    []ReplacementCandidate `json:"candidates,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}
