package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/intent"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/monitor"
	"github.com/marksfx/content-agent/internal/session"
	"github.com/marksfx/content-agent/internal/storage"
)

// Sender is the slice of the Telegram API the bot uses to emit messages,
// extracted so tests can capture output.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is the chat surface: it routes sigil commands through a fixed
// command table, everything else through the intent router, and thread
// replies into the owning draft session.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    Sender
	store     storage.Storage
	parser    *intent.Parser
	generator *agent.Generator
	sessions  *session.Manager
	fetcher   monitor.TweetFetcher
	pending   *pendingStore
	channelID int64
	logger    *zap.Logger

	// threadIndex maps every bot message in a draft thread back to the
	// session's thread id, so replies to any revision land on the session.
	// latestByThread tracks the newest message per thread; reaction
	// approvals only count against that one.
	threadMu       sync.RWMutex
	threadIndex    map[int]string
	latestByThread map[string]int
}

func New(token string, channelID int64, store storage.Storage, parser *intent.Parser, generator *agent.Generator, sessions *session.Manager, fetcher monitor.TweetFetcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:            api,
		sender:         api,
		store:          store,
		parser:         parser,
		generator:      generator,
		sessions:       sessions,
		fetcher:        fetcher,
		pending:        newPendingStore(),
		channelID:      channelID,
		logger:         logger,
		threadIndex:    make(map[int]string),
		latestByThread: make(map[string]int),
	}, nil
}

// newForTest wires a bot without a live Telegram connection.
func newForTest(sender Sender, store storage.Storage, parser *intent.Parser, generator *agent.Generator, sessions *session.Manager, fetcher monitor.TweetFetcher, logger *zap.Logger) *Bot {
	return &Bot{
		sender:         sender,
		store:          store,
		parser:         parser,
		generator:      generator,
		sessions:       sessions,
		fetcher:        fetcher,
		pending:        newPendingStore(),
		logger:         logger,
		threadIndex:    make(map[int]string),
		latestByThread: make(map[string]int),
	}
}

func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.HandleMessage(ctx, update.Message)
		}
	}
}

// HandleMessage routes one inbound message.
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	text := strings.TrimSpace(message.Text)
	userID := message.From.ID
	chatID := message.Chat.ID

	// Thread replies belong to their draft session before anything else.
	if message.ReplyToMessage != nil {
		if threadID, ok := b.threadFor(message.ReplyToMessage.MessageID); ok {
			b.handleThreadReply(ctx, threadID, userID, chatID, message.MessageID, text)
			return
		}
	}

	// Sigil commands bypass the intent router entirely.
	if strings.HasPrefix(text, "!") {
		b.handleCommand(ctx, chatID, userID, text)
		return
	}

	// A pending yes/no confirmation is consumed only by an actual answer;
	// anything else leaves it waiting and is handled normally.
	if action, ok := b.pending.peekAction(userID); ok {
		switch {
		case isYes(text):
			b.pending.clearAction(userID)
			b.execute(ctx, chatID, userID, action.Result)
			return
		case isNo(text):
			b.pending.clearAction(userID)
			b.send(chatID, "Okay, cancelled.")
			return
		}
	}

	// An open clarification folds the answer back into classification.
	if clar, ok := b.pending.takeClarification(userID); ok {
		text = fmt.Sprintf("%s\n(Answering %q): %s", clar.OriginalMessage, clar.Question, text)
	}

	result := b.parser.Classify(ctx, text)
	b.logger.Debug("classified message",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("user_id", userID))

	switch intent.Decide(result) {
	case intent.DecisionClarify:
		b.pending.setClarification(userID, text, result.ClarificationNeeded, chatID)
		b.send(chatID, result.ClarificationNeeded)
	case intent.DecisionHelp:
		b.send(chatID, "I'm not sure what you mean. Try !help to see what I can do.")
	case intent.DecisionConfirm:
		b.pending.setAction(userID, result, chatID)
		b.send(chatID, confirmPrompt(result))
	case intent.DecisionExecute:
		b.execute(ctx, chatID, userID, result)
	}
}

// HandleReaction treats an approval reaction on the latest draft message
// as an approval signal for its session. Reactions on older versions are
// ignored: the operator may be reacting to content that has since changed.
func (b *Bot) HandleReaction(ctx context.Context, userID, chatID int64, messageID int, emoji string) {
	if !session.IsApprovalReaction(emoji) {
		return
	}
	threadID, ok := b.threadFor(messageID)
	if !ok {
		return
	}
	if !b.isLatestInThread(messageID, threadID) {
		return
	}
	b.approve(ctx, threadID, userID, chatID)
}

func (b *Bot) handleThreadReply(ctx context.Context, threadID string, userID, chatID int64, messageID int, text string) {
	s, ok := b.sessions.Get(threadID)
	if !ok {
		b.send(chatID, "No active draft here — it may have expired. Start a new one with !generate.")
		return
	}

	switch s.Status {
	case session.StatusLearningsPending:
		persisted, err := b.sessions.ConfirmLearnings(ctx, threadID, userID, text)
		if err == session.ErrNotOwner {
			return
		}
		if err != nil {
			b.logger.Error("confirm learnings failed", zap.Error(err), zap.String("thread_id", threadID))
			b.send(chatID, "Sorry, something went wrong saving those preferences.")
			return
		}
		if len(persisted) == 0 {
			b.send(chatID, "Got it — nothing saved. ✅ Draft complete.")
		} else {
			b.send(chatID, fmt.Sprintf("Saved %d style preference(s) for %s. ✅ Draft complete.", len(persisted), s.Pillar))
		}

	case session.StatusIterating:
		if session.IsApproval(text) {
			b.approve(ctx, threadID, userID, chatID)
			return
		}
		b.revise(ctx, threadID, userID, chatID, text)

	default:
		b.send(chatID, "This draft is already wrapped up. Start a new one with !generate.")
	}
}

func (b *Bot) approve(ctx context.Context, threadID string, userID, chatID int64) {
	s, err := b.sessions.Approve(ctx, threadID, userID)
	switch err {
	case nil:
	case session.ErrNotOwner:
		// Only the owner's signals are authoritative; others are ignored.
		return
	case session.ErrInvalidState, session.ErrNoActiveSession:
		return
	default:
		b.logger.Error("approve failed", zap.Error(err), zap.String("thread_id", threadID))
		return
	}

	if s.Status == session.StatusComplete {
		b.send(chatID, "Approved. ✅ Ready to post.")
		return
	}

	// learnings_pending: show the proposals and ask.
	if len(s.PendingLearnings) == 0 {
		// Nothing generalizable came out; resolve immediately.
		if _, err := b.sessions.ConfirmLearnings(ctx, threadID, userID, "no"); err == nil {
			b.send(chatID, "Approved. ✅ Ready to post.")
		}
		return
	}

	var sb strings.Builder
	sb.WriteString("Approved. ✅ I noticed some style preferences from your revisions:\n")
	for i, l := range s.PendingLearnings {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, l)
	}
	sb.WriteString("\nSave these for future posts? (yes / no / yes except ...)")
	b.sendInThread(chatID, threadID, sb.String())
}

func (b *Bot) revise(ctx context.Context, threadID string, userID, chatID int64, request string) {
	s, err := b.sessions.Revise(ctx, threadID, userID, request)
	switch err {
	case nil:
	case session.ErrNotOwner:
		b.send(chatID, "This draft belongs to someone else — start your own with !generate.")
		return
	case session.ErrRevisionLimit:
		b.send(chatID, "This draft has hit the 10-revision limit. Start a fresh session with !generate to keep going.")
		return
	case session.ErrInvalidState:
		b.send(chatID, "No active draft to revise here.")
		return
	default:
		b.logger.Error("revise failed", zap.Error(err), zap.String("thread_id", threadID))
		b.send(chatID, "Sorry, I couldn't generate that revision. Try again?")
		return
	}

	v := s.Latest()
	b.sendInThread(chatID, threadID,
		fmt.Sprintf("Draft v%d:\n\n%s\n\nReply with more changes, or say \"looks good\" to approve.", v.Number, v.Content))
}

// threadFor resolves a bot message id to its session thread.
func (b *Bot) threadFor(messageID int) (string, bool) {
	b.threadMu.RLock()
	defer b.threadMu.RUnlock()
	threadID, ok := b.threadIndex[messageID]
	return threadID, ok
}

func (b *Bot) registerThreadMessage(messageID int, threadID string) {
	b.threadMu.Lock()
	defer b.threadMu.Unlock()
	b.threadIndex[messageID] = threadID
	b.latestByThread[threadID] = messageID
}

// isLatestInThread reports whether the message is the thread's newest;
// reactions on superseded draft versions don't count as approvals.
func (b *Bot) isLatestInThread(messageID int, threadID string) bool {
	b.threadMu.RLock()
	defer b.threadMu.RUnlock()
	return b.latestByThread[threadID] == messageID
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// sendInThread sends and indexes the outgoing message so future replies
// to it route back to the session.
func (b *Bot) sendInThread(chatID int64, threadID, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := b.sender.Send(msg)
	if err != nil {
		b.logger.Error("failed to send thread message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return
	}
	b.registerThreadMessage(sent.MessageID, threadID)
}

// SendAlert implements monitor.Notifier: signal alerts land in the
// configured channel with the suggested post attached.
func (b *Bot) SendAlert(ctx context.Context, alert models.Alert) error {
	emoji := "🗞️"
	if alert.SourceType == models.SourceRSS {
		emoji = "📰"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s alert from %s (%s, score %.2f)\n\n%s\n",
		emoji, alert.RelevanceType, alert.SourceName, alert.Category, alert.Score, alert.Headline)
	if alert.SuggestedPost != "" {
		fmt.Fprintf(&sb, "\n📝 Suggested post:\n%s\n", alert.SuggestedPost)
	}
	if alert.Link != "" {
		fmt.Fprintf(&sb, "\n%s", alert.Link)
	}

	msg := tgbotapi.NewMessage(b.channelID, sb.String())
	if _, err := b.sender.Send(msg); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func confirmPrompt(res intent.Result) string {
	switch res.Intent {
	case intent.IntentRemoveAccount:
		return fmt.Sprintf("Remove @%s from monitoring? (yes/no)", res.Entities.Handle)
	default:
		return fmt.Sprintf("Just to confirm — you want me to %s? (yes/no)",
			strings.ReplaceAll(string(res.Intent), "_", " "))
	}
}
