package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/marksfx/content-agent/internal/intent"
)

const pendingTTL = 5 * time.Minute

// pendingAction is a classified intent awaiting an explicit yes/no.
// One per user; a newer pending action overwrites the old one.
type pendingAction struct {
	Result    intent.Result
	ChatID    int64
	CreatedAt time.Time
}

// pendingClarification is a suspended classification awaiting the answer
// to a clarifying question.
type pendingClarification struct {
	OriginalMessage string
	Question        string
	ChatID          int64
	CreatedAt       time.Time
}

// pendingStore tracks per-user suspended interactions with TTL expiry.
type pendingStore struct {
	mu             sync.Mutex
	actions        map[int64]pendingAction
	clarifications map[int64]pendingClarification
	now            func() time.Time
}

func newPendingStore() *pendingStore {
	return &pendingStore{
		actions:        make(map[int64]pendingAction),
		clarifications: make(map[int64]pendingClarification),
		now:            time.Now,
	}
}

func (p *pendingStore) setAction(userID int64, res intent.Result, chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions[userID] = pendingAction{Result: res, ChatID: chatID, CreatedAt: p.now()}
	delete(p.clarifications, userID)
}

// peekAction reads a pending confirmation without consuming it, so an
// interleaved unrelated message doesn't discard it. Expired entries are
// purged on peek.
func (p *pendingStore) peekAction(userID int64) (pendingAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.actions[userID]
	if !ok {
		return pendingAction{}, false
	}
	if p.now().Sub(a.CreatedAt) > pendingTTL {
		delete(p.actions, userID)
		return pendingAction{}, false
	}
	return a, true
}

// clearAction consumes the pending confirmation once it has actually been
// answered.
func (p *pendingStore) clearAction(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.actions, userID)
}

func (p *pendingStore) setClarification(userID int64, original, question string, chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clarifications[userID] = pendingClarification{
		OriginalMessage: original,
		Question:        question,
		ChatID:          chatID,
		CreatedAt:       p.now(),
	}
	delete(p.actions, userID)
}

func (p *pendingStore) takeClarification(userID int64) (pendingClarification, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clarifications[userID]
	if !ok {
		return pendingClarification{}, false
	}
	delete(p.clarifications, userID)
	if p.now().Sub(c.CreatedAt) > pendingTTL {
		return pendingClarification{}, false
	}
	return c, true
}

func isYes(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "yes", "y", "yep", "yeah", "confirm", "ok", "sure", "do it":
		return true
	}
	return false
}

func isNo(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "no", "n", "nope", "nah", "cancel", "stop":
		return true
	}
	return false
}
