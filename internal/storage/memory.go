package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marksfx/content-agent/internal/models"
)

// MemoryStorage is the in-memory backend for local runs and tests. It
// honors the same uniqueness constraints the postgres schema does.
type MemoryStorage struct {
	mu           sync.RWMutex
	accounts     map[string]*models.MonitoredAccount // by id
	rssSources   map[string]*models.RSSSource        // by id
	tweets       map[string]*models.Tweet            // by tweet_id
	rssItems     map[string]*models.RSSItem          // by guid
	voiceSamples map[string][]models.VoiceSample     // by account id
	feedback     []models.Feedback
	history      []models.ContentHistory
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts:     make(map[string]*models.MonitoredAccount),
		rssSources:   make(map[string]*models.RSSSource),
		tweets:       make(map[string]*models.Tweet),
		rssItems:     make(map[string]*models.RSSItem),
		voiceSamples: make(map[string][]models.VoiceSample),
	}
}

func (s *MemoryStorage) CreateAccount(ctx context.Context, account *models.MonitoredAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if strings.EqualFold(existing.TwitterHandle, account.TwitterHandle) {
			return fmt.Errorf("account %s already exists", account.TwitterHandle)
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Priority == 0 {
		account.Priority = 2
	}
	account.IsActive = true
	account.CreatedAt = time.Now()

	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetAccountByHandle(ctx context.Context, handle string) (*models.MonitoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.TwitterHandle, handle) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) ActiveAccounts(ctx context.Context, category models.Category) ([]models.MonitoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []models.MonitoredAccount
	for _, a := range s.accounts {
		if !a.IsActive {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Priority != accounts[j].Priority {
			return accounts[i].Priority < accounts[j].Priority
		}
		return accounts[i].TwitterHandle < accounts[j].TwitterHandle
	})
	return accounts, nil
}

func (s *MemoryStorage) VoiceReferences(ctx context.Context) ([]models.MonitoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []models.MonitoredAccount
	for _, a := range s.accounts {
		if a.IsActive && a.IsVoiceReference {
			accounts = append(accounts, *a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].TwitterHandle < accounts[j].TwitterHandle
	})
	return accounts, nil
}

func (s *MemoryStorage) SetVoiceReference(ctx context.Context, accountID string, isVoice bool, pillars []models.Pillar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.IsVoiceReference = isVoice
	a.VoicePillars = append([]models.Pillar(nil), pillars...)
	return nil
}

func (s *MemoryStorage) DeactivateAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.IsActive = false
	return nil
}

func (s *MemoryStorage) UpdateAccountCursor(ctx context.Context, accountID, lastTweetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	if lastTweetID != "" {
		a.LastTweetID = lastTweetID
	}
	now := time.Now()
	a.LastCheckedAt = &now
	return nil
}

func (s *MemoryStorage) KnownHandles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var handles []string
	for _, a := range s.accounts {
		if a.IsActive {
			handles = append(handles, a.TwitterHandle)
		}
	}
	sort.Strings(handles)
	return handles, nil
}

func (s *MemoryStorage) CreateRSSSource(ctx context.Context, source *models.RSSSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rssSources {
		if existing.URL == source.URL {
			return fmt.Errorf("rss source %s already exists", source.URL)
		}
	}

	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	if source.Priority == 0 {
		source.Priority = 2
	}
	source.IsActive = true
	source.CreatedAt = time.Now()

	cp := *source
	cp.Keywords = append([]string(nil), source.Keywords...)
	s.rssSources[source.ID] = &cp
	return nil
}

func (s *MemoryStorage) ActiveRSSSources(ctx context.Context) ([]models.RSSSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sources []models.RSSSource
	for _, src := range s.rssSources {
		if src.IsActive {
			sources = append(sources, *src)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Priority != sources[j].Priority {
			return sources[i].Priority < sources[j].Priority
		}
		return sources[i].Name < sources[j].Name
	})
	return sources, nil
}

func (s *MemoryStorage) UpdateRSSSourceChecked(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.rssSources[sourceID]
	if !ok {
		return fmt.Errorf("rss source not found")
	}
	now := time.Now()
	src.LastCheckedAt = &now
	return nil
}

func (s *MemoryStorage) SaveTweet(ctx context.Context, tweet *models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Duplicate external ids are expected control flow, keep first write.
	if _, ok := s.tweets[tweet.TweetID]; ok {
		return nil
	}
	if tweet.ID == "" {
		tweet.ID = uuid.New().String()
	}
	tweet.FetchedAt = time.Now()
	cp := *tweet
	s.tweets[tweet.TweetID] = &cp
	return nil
}

func (s *MemoryStorage) MarkTweetNotified(ctx context.Context, tweetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tweets[tweetID]; ok {
		t.Notified = true
	}
	return nil
}

func (s *MemoryStorage) SaveRSSItem(ctx context.Context, item *models.RSSItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rssItems[item.GUID]; ok {
		return nil
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.FetchedAt = time.Now()
	cp := *item
	s.rssItems[item.GUID] = &cp
	return nil
}

func (s *MemoryStorage) MarkRSSItemNotified(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.rssItems[guid]; ok {
		item.Notified = true
	}
	return nil
}

func (s *MemoryStorage) ReplaceVoiceSamples(ctx context.Context, accountID string, samples []models.VoiceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]models.VoiceSample, len(samples))
	for i, sample := range samples {
		if sample.ID == "" {
			sample.ID = uuid.New().String()
		}
		sample.AccountID = accountID
		sample.FetchedAt = time.Now()
		replaced[i] = sample
	}
	s.voiceSamples[accountID] = replaced
	return nil
}

func (s *MemoryStorage) VoiceSamplesForPillar(ctx context.Context, pillar models.Pillar, limit int) ([]models.VoiceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var samples []models.VoiceSample
	for accountID, accountSamples := range s.voiceSamples {
		a, ok := s.accounts[accountID]
		if !ok || !a.IsActive || !a.IsVoiceReference {
			continue
		}
		if len(a.VoicePillars) > 0 && !containsPillar(a.VoicePillars, pillar) {
			continue
		}
		samples = append(samples, accountSamples...)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].FetchedAt.After(samples[j].FetchedAt)
	})
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}

func (s *MemoryStorage) AddFeedback(ctx context.Context, fb models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	fb.CreatedAt = time.Now()
	s.feedback = append(s.feedback, fb)
	return nil
}

func (s *MemoryStorage) RecentFeedback(ctx context.Context, pillar models.Pillar, limit int) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.Feedback
	for i := len(s.feedback) - 1; i >= 0 && len(items) < limit; i-- {
		fb := s.feedback[i]
		if pillar != "" && fb.Pillar != pillar {
			continue
		}
		items = append(items, fb)
	}
	return items, nil
}

func (s *MemoryStorage) FeedbackForPrompt(ctx context.Context, pillar models.Pillar, limit int) (string, error) {
	items, err := s.RecentFeedback(ctx, pillar, limit)
	if err != nil {
		return "", err
	}
	return FormatFeedback(items), nil
}

func (s *MemoryStorage) AddContentHistory(ctx context.Context, record models.ContentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now()
	s.history = append(s.history, record)
	return nil
}

func (s *MemoryStorage) RecentTopics(ctx context.Context, pillar models.Pillar, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var topics []string
	for i := len(s.history) - 1; i >= 0 && len(topics) < limit; i-- {
		record := s.history[i]
		if record.Pillar == pillar && record.Topic != "" {
			topics = append(topics, record.Topic)
		}
	}
	return topics, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func containsPillar(pillars []models.Pillar, pillar models.Pillar) bool {
	for _, p := range pillars {
		if p == pillar {
			return true
		}
	}
	return false
}
