package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/intent"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/session"
	"github.com/marksfx/content-agent/internal/storage"
	"github.com/marksfx/content-agent/internal/twitter"
)

// scriptedCompleter routes by system prompt so one stub can serve the
// generator, the extractor, and the intent parser in a single flow.
type scriptedCompleter struct {
	mu sync.Mutex
}

func (s *scriptedCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.Contains(system, "durable style preferences"):
		return `["keep posts short"]`, nil
	case strings.Contains(system, "indexes of the learnings to KEEP"):
		return `[1]`, nil
	case strings.Contains(system, "parsing chat messages"):
		if strings.Contains(user, "drop cbn") {
			return `{"intent":"remove_account","confidence":0.75,"entities":{"handle":"cbn_updates"}}`, nil
		}
		return `{"intent":"unknown","confidence":0,"entities":{}}`, nil
	case strings.Contains(user, "Revise the latest version"):
		return "revised draft", nil
	default:
		return "initial draft", nil
	}
}

type captureSender struct {
	mu     sync.Mutex
	sent   []tgbotapi.MessageConfig
	nextID int
}

func (c *captureSender) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := m.(tgbotapi.MessageConfig)
	c.sent = append(c.sent, msg)
	c.nextID++
	return tgbotapi.Message{MessageID: c.nextID, Text: msg.Text}, nil
}

func (c *captureSender) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1].Text
}

func (c *captureSender) lastID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextID
}

type fixedFetcher struct{}

func (fixedFetcher) GetUserByUsername(_ context.Context, username string) (*twitter.User, error) {
	return &twitter.User{ID: "id-" + username, Username: username, FollowerCount: 1000}, nil
}

func (fixedFetcher) GetUserTweets(context.Context, string, string, int) ([]twitter.Tweet, error) {
	return []twitter.Tweet{{ID: "1", Text: "sample tweet"}}, nil
}

func newTestBot(t *testing.T) (*Bot, *captureSender, storage.Storage) {
	t.Helper()
	logger := zap.NewNop()
	completer := &scriptedCompleter{}
	store := storage.NewMemoryStorage()
	generator := agent.NewGenerator(completer, store, logger)
	extractor := agent.NewExtractor(completer, logger)
	sessions := session.NewManager(generator, extractor, store, 24*time.Hour, 10, logger)
	parser := intent.NewParser(completer, logger)
	sender := &captureSender{}
	b := newForTest(sender, store, parser, generator, sessions, fixedFetcher{}, logger)
	return b, sender, store
}

func userMessage(userID, chatID int64, text string, replyTo *tgbotapi.Message) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID:      9999,
		From:           &tgbotapi.User{ID: userID},
		Chat:           &tgbotapi.Chat{ID: chatID},
		Text:           text,
		ReplyToMessage: replyTo,
	}
}

func TestGenerateCommandOpensSession(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate education leverage", nil))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.lastText(), "Draft v0")
	assert.Contains(t, sender.lastText(), "initial draft")

	_, ok := b.threadFor(sender.lastID())
	assert.True(t, ok, "the draft message must be routable back to its session")
}

func TestThreadReplyRevisesDraft(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate education leverage", nil))
	draftID := sender.lastID()

	b.HandleMessage(ctx, userMessage(1, 50, "make it shorter",
		&tgbotapi.Message{MessageID: draftID}))

	assert.Contains(t, sender.lastText(), "Draft v1")
	assert.Contains(t, sender.lastText(), "revised draft")

	// The revision message joins the thread too.
	_, ok := b.threadFor(sender.lastID())
	assert.True(t, ok)
}

func TestNonOwnerReplyIsRejected(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate education leverage", nil))
	draftID := sender.lastID()

	b.HandleMessage(ctx, userMessage(2, 50, "make it shorter",
		&tgbotapi.Message{MessageID: draftID}))

	assert.Contains(t, sender.lastText(), "belongs to someone else")
}

func TestApprovalOnFirstDraftCompletes(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate product fees", nil))
	draftID := sender.lastID()

	b.HandleMessage(ctx, userMessage(1, 50, "looks good",
		&tgbotapi.Message{MessageID: draftID}))

	assert.Contains(t, sender.lastText(), "Approved")
}

func TestReviseThenApproveProposesLearnings(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate education leverage", nil))
	draftID := sender.lastID()

	b.HandleMessage(ctx, userMessage(1, 50, "make it shorter",
		&tgbotapi.Message{MessageID: draftID}))
	revisionID := sender.lastID()

	// Approving via the revision message, not the original draft.
	b.HandleMessage(ctx, userMessage(1, 50, "ship it",
		&tgbotapi.Message{MessageID: revisionID}))
	assert.Contains(t, sender.lastText(), "keep posts short")
	proposalID := sender.lastID()

	// Confirming persists the learning and completes the session.
	b.HandleMessage(ctx, userMessage(1, 50, "yes",
		&tgbotapi.Message{MessageID: proposalID}))
	assert.Contains(t, sender.lastText(), "Draft complete")

	fbs, err := store.RecentFeedback(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.Equal(t, "keep posts short", fbs[0].FeedbackText)
}

func TestLearningsRejectionPersistsNothing(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate education leverage", nil))
	draftID := sender.lastID()
	b.HandleMessage(ctx, userMessage(1, 50, "tighter",
		&tgbotapi.Message{MessageID: draftID}))
	b.HandleMessage(ctx, userMessage(1, 50, "perfect",
		&tgbotapi.Message{MessageID: sender.lastID()}))
	b.HandleMessage(ctx, userMessage(1, 50, "no",
		&tgbotapi.Message{MessageID: sender.lastID()}))

	assert.Contains(t, sender.lastText(), "nothing saved")
	fbs, err := store.RecentFeedback(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, fbs)
}

func TestReactionApproval(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate product fees", nil))
	draftID := sender.lastID()

	b.HandleReaction(ctx, 1, 50, draftID, "👍")
	assert.Contains(t, sender.lastText(), "Approved")

	// A non-approval reaction does nothing.
	before := len(sender.sent)
	b.HandleReaction(ctx, 1, 50, draftID, "👎")
	assert.Len(t, sender.sent, before)
}

func TestAddMonitorCommand(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor @cbn_updates nigeria high", nil))
	assert.Contains(t, sender.lastText(), "Monitoring @cbn_updates")

	account, err := store.GetAccountByHandle(ctx, "cbn_updates")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, 1, account.Priority)
}

func TestAddVoicePullsSamples(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addvoice @macro_voice market", nil))
	assert.Contains(t, sender.lastText(), "voice reference")

	samples, err := store.VoiceSamplesForPillar(ctx, "market_commentary", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "sample tweet", samples[0].Content)
}

func TestRemoveCommandDeactivates(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor @cbn_updates nigeria", nil))
	b.HandleMessage(ctx, userMessage(1, 50, "!remove cbn", nil))
	assert.Contains(t, sender.lastText(), "Stopped monitoring @cbn_updates")

	account, err := store.GetAccountByHandle(ctx, "cbn_updates")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.False(t, account.IsActive)
}

func TestUnknownMessageGetsHelpHint(t *testing.T) {
	b, sender, _ := newTestBot(t)
	b.HandleMessage(context.Background(), userMessage(1, 50, "what's the weather like", nil))
	assert.Contains(t, sender.lastText(), "!help")
}

func TestAddVoiceResolvesStoredHandle(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor @KobeissiLetter global_macro", nil))

	// An informal reference lands on the account already tracked, not on
	// a fresh Twitter lookup of the literal string.
	b.HandleMessage(ctx, userMessage(1, 50, "!addvoice kobeissi market", nil))
	assert.Contains(t, sender.lastText(), "@KobeissiLetter is now a voice reference")

	account, err := store.GetAccountByHandle(ctx, "KobeissiLetter")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.True(t, account.IsVoiceReference)

	stray, err := store.GetAccountByHandle(ctx, "kobeissi")
	require.NoError(t, err)
	assert.Nil(t, stray, "no duplicate account for the informal spelling")
}

func TestAddMonitorResolvesStoredHandle(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor @KobeissiLetter global_macro", nil))
	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor kobeissi global_macro", nil))
	assert.Contains(t, sender.lastText(), "@KobeissiLetter is already being monitored")
}

func TestAddVoiceAmbiguousHandleAsks(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	for _, h := range []string{"cbn_updates", "cbn_news"} {
		err := store.CreateAccount(ctx, &models.MonitoredAccount{
			TwitterHandle: h,
			Category:      models.CategoryNigeria,
		})
		require.NoError(t, err)
	}

	b.HandleMessage(ctx, userMessage(1, 50, "!addvoice cbn market", nil))
	assert.Contains(t, sender.lastText(), "Did you mean @")
}

func TestGenerateBatchOpensSessionPerPillar(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate-batch", nil))

	sender.mu.Lock()
	var draftIDs []int
	for i, m := range sender.sent {
		if strings.Contains(m.Text, "Draft v0") {
			draftIDs = append(draftIDs, i+1)
		}
	}
	sender.mu.Unlock()
	require.Len(t, draftIDs, len(models.Pillars), "one draft per pillar")

	seen := make(map[string]bool)
	for _, id := range draftIDs {
		threadID, ok := b.threadFor(id)
		require.True(t, ok)
		seen[threadID] = true
	}
	assert.Len(t, seen, len(models.Pillars), "each draft has its own session thread")
}

func TestHyphenatedCommandAliases(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!add-monitor @cbn_updates nigeria", nil))
	assert.Contains(t, sender.lastText(), "Monitoring @cbn_updates")

	b.HandleMessage(ctx, userMessage(1, 50, "!add-voice @macro_voice market", nil))
	assert.Contains(t, sender.lastText(), "voice reference")

	b.HandleMessage(ctx, userMessage(1, 50, "!tag-voice @macro_voice education", nil))
	assert.Contains(t, sender.lastText(), "Tagged @macro_voice")

	b.HandleMessage(ctx, userMessage(1, 50, "!list-voice", nil))
	assert.Contains(t, sender.lastText(), "@macro_voice")

	b.HandleMessage(ctx, userMessage(1, 50, "!list-monitors", nil))
	assert.Contains(t, sender.lastText(), "@cbn_updates")

	b.HandleMessage(ctx, userMessage(1, 50, "!refresh-voice", nil))
	assert.Contains(t, sender.lastText(), "Refreshed samples")

	account, err := store.GetAccountByHandle(ctx, "macro_voice")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.True(t, account.IsVoiceReference)
}

func TestPendingConfirmationSurvivesUnrelatedMessage(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!addmonitor @cbn_updates nigeria", nil))

	// Destructive intent below certainty asks for a yes/no.
	b.HandleMessage(ctx, userMessage(1, 50, "drop cbn from the list", nil))
	assert.Contains(t, sender.lastText(), "Remove @cbn_updates")

	// An interleaved unrelated message is answered normally and leaves
	// the confirmation waiting.
	b.HandleMessage(ctx, userMessage(1, 50, "what's the weather like", nil))
	assert.Contains(t, sender.lastText(), "!help")

	b.HandleMessage(ctx, userMessage(1, 50, "yes", nil))
	assert.Contains(t, sender.lastText(), "Stopped monitoring @cbn_updates")

	account, err := store.GetAccountByHandle(ctx, "cbn_updates")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.False(t, account.IsActive)
}

func TestReactionOnOldVersionIsIgnored(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, userMessage(1, 50, "!generate product fees", nil))
	draftID := sender.lastID()

	b.HandleMessage(ctx, userMessage(1, 50, "make it shorter",
		&tgbotapi.Message{MessageID: draftID}))
	revisionID := sender.lastID()

	// The v0 message is superseded; a reaction there must not approve.
	before := len(sender.sent)
	b.HandleReaction(ctx, 1, 50, draftID, "👍")
	assert.Len(t, sender.sent, before)

	// The latest version still approves.
	b.HandleReaction(ctx, 1, 50, revisionID, "👍")
	assert.Contains(t, sender.lastText(), "keep posts short")
}
