package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/models"
)

var (
	// ErrNoActiveSession means no session exists for the thread.
	ErrNoActiveSession = errors.New("no active draft session")
	// ErrSessionExists means the thread already has a live session.
	ErrSessionExists = errors.New("a draft session is already active in this thread")
	// ErrNotOwner means someone other than the creating user tried to
	// mutate the session.
	ErrNotOwner = errors.New("session belongs to another user")
	// ErrInvalidState means the action is not valid in the session's
	// current state.
	ErrInvalidState = errors.New("action not valid in current session state")
	// ErrRevisionLimit means the version cap was reached; the caller
	// should start a new session.
	ErrRevisionLimit = errors.New("revision limit reached, start a new session")
)

// Reviser generates the next draft version from the full history.
type Reviser interface {
	Revise(ctx context.Context, pillar models.Pillar, topic string, history []agent.DraftVersion, request string) (string, error)
}

// Extractor mines revision history for style learnings.
type Extractor interface {
	Extract(ctx context.Context, pillar models.Pillar, versions []agent.DraftVersion) []string
	FilterExcept(ctx context.Context, learnings []string, reply string) []string
}

// FeedbackSink persists confirmed learnings.
type FeedbackSink interface {
	AddFeedback(ctx context.Context, fb models.Feedback) error
}

// Manager owns all draft sessions, keyed by thread id. Mutations on one
// session are serialized by a per-session mutex so version numbers stay
// contiguous under concurrent replies.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	reviser     Reviser
	extractor   Extractor
	feedback    FeedbackSink
	retention   time.Duration
	maxVersions int
	logger      *zap.Logger
	now         func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

func NewManager(reviser Reviser, extractor Extractor, feedback FeedbackSink, retention time.Duration, maxVersions int, logger *zap.Logger) *Manager {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if maxVersions <= 0 {
		maxVersions = 10
	}
	return &Manager{
		sessions:    make(map[string]*entry),
		reviser:     reviser,
		extractor:   extractor,
		feedback:    feedback,
		retention:   retention,
		maxVersions: maxVersions,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a session with version 0 in state iterating. The creating
// user becomes the owner; a live session in the thread is not replaced.
func (m *Manager) Create(threadID string, ownerID int64, pillar models.Pillar, topic, prompt, content string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[threadID]; ok && e.session.Status != StatusComplete {
		return nil, ErrSessionExists
	}

	now := m.now()
	s := &Session{
		ThreadID:  threadID,
		OwnerID:   ownerID,
		Pillar:    pillar,
		Topic:     topic,
		Prompt:    prompt,
		Status:    StatusIterating,
		CreatedAt: now,
		Versions: []Version{{
			Number:    0,
			Content:   content,
			CreatedAt: now,
		}},
	}
	m.sessions[threadID] = &entry{session: s}
	return snapshot(s), nil
}

// Get returns a copy of the session for the thread, if any.
func (m *Manager) Get(threadID string) (*Session, bool) {
	m.mu.RLock()
	e, ok := m.sessions[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.session), true
}

func (m *Manager) lookup(threadID string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveSession
	}
	return e, nil
}

// Revise appends the next draft version. Valid only in state iterating,
// only for the owner, and only below the version cap.
func (m *Manager) Revise(ctx context.Context, threadID string, userID int64, request string) (*Session, error) {
	e, err := m.lookup(threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session

	if s.OwnerID != userID {
		return nil, ErrNotOwner
	}
	if s.Status != StatusIterating {
		return nil, ErrInvalidState
	}
	if len(s.Versions) >= m.maxVersions {
		return nil, ErrRevisionLimit
	}

	history := draftHistory(s)
	content, err := m.reviser.Revise(ctx, s.Pillar, s.Topic, history, request)
	if err != nil {
		return nil, err
	}

	s.Versions = append(s.Versions, Version{
		Number:          len(s.Versions),
		Content:         content,
		RevisionRequest: request,
		CreatedAt:       m.now(),
	})
	return snapshot(s), nil
}

// Approve moves the session out of iterating. With more than one version
// it extracts learnings and parks in learnings_pending; a session
// approved on its first draft completes immediately with none.
func (m *Manager) Approve(ctx context.Context, threadID string, userID int64) (*Session, error) {
	e, err := m.lookup(threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session

	if s.OwnerID != userID {
		return nil, ErrNotOwner
	}
	if s.Status != StatusIterating {
		return nil, ErrInvalidState
	}

	now := m.now()
	s.ApprovedAt = &now

	if len(s.Versions) > 1 {
		s.PendingLearnings = m.extractor.Extract(ctx, s.Pillar, draftHistory(s))
		s.Status = StatusLearningsPending
	} else {
		s.Status = StatusComplete
	}
	return snapshot(s), nil
}

// ConfirmLearnings resolves a learnings_pending session. "no" discards
// everything; a reply containing "except" filters the list via the
// collaborator; any other affirmative persists all. Every path completes
// the session.
func (m *Manager) ConfirmLearnings(ctx context.Context, threadID string, userID int64, reply string) ([]string, error) {
	e, err := m.lookup(threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session

	if s.OwnerID != userID {
		return nil, ErrNotOwner
	}
	if s.Status != StatusLearningsPending {
		return nil, ErrInvalidState
	}

	toPersist := s.PendingLearnings
	switch {
	case isRejection(reply):
		toPersist = nil
	case strings.Contains(strings.ToLower(reply), "except"):
		toPersist = m.extractor.FilterExcept(ctx, s.PendingLearnings, reply)
	}

	var persisted []string
	for _, text := range toPersist {
		fb := models.Feedback{
			Pillar:          s.Pillar,
			OriginalContent: s.Latest().Content,
			FeedbackText:    text,
			ThreadID:        s.ThreadID,
		}
		if err := m.feedback.AddFeedback(ctx, fb); err != nil {
			m.logger.Error("failed to persist learning",
				zap.Error(err),
				zap.String("thread_id", s.ThreadID),
				zap.String("pillar", string(s.Pillar)))
			continue
		}
		persisted = append(persisted, text)
	}

	s.PendingLearnings = nil
	s.Status = StatusComplete
	return persisted, nil
}

// EvictExpired purges sessions past the retention window regardless of
// status. Pending learnings of an expired session are dropped, never
// silently persisted. Returns the number evicted.
func (m *Manager) EvictExpired() int {
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for threadID, e := range m.sessions {
		if e.session.CreatedAt.Before(cutoff) {
			if len(e.session.PendingLearnings) > 0 {
				m.logger.Info("dropping unconfirmed learnings on eviction",
					zap.String("thread_id", threadID),
					zap.Int("count", len(e.session.PendingLearnings)))
			}
			delete(m.sessions, threadID)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs eviction on a timer until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.EvictExpired(); n > 0 {
					m.logger.Info("evicted expired sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

func isRejection(reply string) bool {
	r := strings.ToLower(strings.TrimSpace(reply))
	return r == "no" || r == "nope" || r == "nah" ||
		strings.HasPrefix(r, "no ") || strings.HasPrefix(r, "no,")
}

func draftHistory(s *Session) []agent.DraftVersion {
	history := make([]agent.DraftVersion, len(s.Versions))
	for i, v := range s.Versions {
		history[i] = agent.DraftVersion{
			Number:          v.Number,
			Content:         v.Content,
			RevisionRequest: v.RevisionRequest,
		}
	}
	return history
}

func snapshot(s *Session) *Session {
	cp := *s
	cp.Versions = append([]Version(nil), s.Versions...)
	cp.PendingLearnings = append([]string(nil), s.PendingLearnings...)
	return &cp
}
