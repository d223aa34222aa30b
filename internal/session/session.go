package session

import (
	"time"

	"github.com/marksfx/content-agent/internal/models"
)

// Status is a draft session's lifecycle state. Transitions are monotonic:
// iterating → approved → learnings_pending → complete, with iterating
// self-looping on each revision.
type Status string

const (
	StatusIterating        Status = "iterating"
	StatusApproved         Status = "approved"
	StatusLearningsPending Status = "learnings_pending"
	StatusComplete         Status = "complete"
)

// Version is one entry in a session's draft history. Numbers are
// contiguous from 0.
type Version struct {
	Number          int       `json:"number"`
	Content         string    `json:"content"`
	RevisionRequest string    `json:"revision_request,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session owns one content item's lifecycle from generation through
// revision to approval. Owned exclusively by the thread that created it.
type Session struct {
	ThreadID         string        `json:"thread_id"`
	OwnerID          int64         `json:"owner_id"`
	Pillar           models.Pillar `json:"pillar"`
	Topic            string        `json:"topic"`
	Prompt           string        `json:"prompt"`
	Versions         []Version     `json:"versions"`
	Status           Status        `json:"status"`
	PendingLearnings []string      `json:"pending_learnings,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
}

// Latest returns the newest draft version.
func (s *Session) Latest() Version {
	return s.Versions[len(s.Versions)-1]
}
