package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/intent"
	"github.com/marksfx/content-agent/internal/models"
)

const voiceSampleCount = 10

// execute dispatches a classified intent to its action.
func (b *Bot) execute(ctx context.Context, chatID, userID int64, res intent.Result) {
	switch res.Intent {
	case intent.IntentAddVoice:
		b.addVoice(ctx, chatID, userID, res.Entities.Handle, res.Entities.Pillars)
	case intent.IntentAddMonitor:
		b.addMonitor(ctx, chatID, userID, res.Entities)
	case intent.IntentRemoveAccount:
		b.removeAccount(ctx, chatID, userID, res.Entities.Handle)
	case intent.IntentListVoices:
		b.listVoices(ctx, chatID)
	case intent.IntentListMonitors:
		b.listMonitors(ctx, chatID)
	case intent.IntentTagVoice:
		b.tagVoice(ctx, chatID, userID, res.Entities.Handle, res.Entities.Pillars)
	case intent.IntentRefreshVoices:
		b.refreshVoices(ctx, chatID)
	case intent.IntentGeneratePost:
		b.generatePost(ctx, chatID, userID, res.Entities.Pillars, res.Entities.Topic)
	case intent.IntentGenerateBatch:
		b.generateBatch(ctx, chatID, userID)
	case intent.IntentHelp:
		b.send(chatID, helpText)
	default:
		b.send(chatID, "I'm not sure what you mean. Try !help to see what I can do.")
	}
}

// handleCommand serves the sigil command table. Commands are exact and
// skip the intent router, so they work even when the LLM is down.
func (b *Bot) handleCommand(ctx context.Context, chatID, userID int64, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	// Hyphenated spellings are accepted alongside the compact ones.
	switch cmd {
	case "!help":
		b.send(chatID, helpText)

	case "!voices", "!list-voice", "!list-voices":
		b.listVoices(ctx, chatID)

	case "!monitors", "!list-monitors":
		b.listMonitors(ctx, chatID)

	case "!addvoice", "!add-voice":
		if len(args) == 0 {
			b.send(chatID, "Usage: !addvoice @handle [pillar ...]")
			return
		}
		pillars := parsePillarArgs(args[1:])
		b.addVoice(ctx, chatID, userID, args[0], pillars)

	case "!addmonitor", "!add-monitor":
		if len(args) < 2 {
			b.send(chatID, "Usage: !addmonitor @handle <category> [priority]")
			return
		}
		ents := intent.Entities{Handle: args[0]}
		if cat, ok := intent.NormalizeCategory(args[1]); ok {
			ents.Category = cat
		} else {
			b.send(chatID, fmt.Sprintf("Unknown category %q. Categories: nigeria, argentina, colombia, global_macro, crypto_defi, reply_target.", args[1]))
			return
		}
		if len(args) > 2 {
			if p, ok := intent.NormalizePriority(args[2]); ok {
				ents.Priority = p
			}
		}
		b.addMonitor(ctx, chatID, userID, ents)

	case "!remove":
		if len(args) == 0 {
			b.send(chatID, "Usage: !remove @handle")
			return
		}
		b.removeAccount(ctx, chatID, userID, args[0])

	case "!tagvoice", "!tag-voice":
		if len(args) < 2 {
			b.send(chatID, "Usage: !tagvoice @handle <pillar ...>")
			return
		}
		b.tagVoice(ctx, chatID, userID, args[0], parsePillarArgs(args[1:]))

	case "!refreshvoices", "!refresh-voice", "!refresh-voices":
		b.refreshVoices(ctx, chatID)

	case "!generate":
		var pillars []models.Pillar
		topic := ""
		if len(args) > 0 {
			if p, ok := intent.NormalizePillar(args[0]); ok {
				pillars = []models.Pillar{p}
				topic = strings.Join(args[1:], " ")
			} else {
				topic = strings.Join(args, " ")
			}
		}
		b.generatePost(ctx, chatID, userID, pillars, topic)

	case "!generatebatch", "!generate-batch":
		b.generateBatch(ctx, chatID, userID)

	default:
		b.send(chatID, fmt.Sprintf("Unknown command %s. Try !help.", cmd))
	}
}

func parsePillarArgs(args []string) []models.Pillar {
	var pillars []models.Pillar
	for _, a := range args {
		if p, ok := intent.NormalizePillar(a); ok {
			pillars = append(pillars, p)
		}
	}
	return pillars
}

// resolveStored matches a handle against stored accounts before any
// Twitter lookup, so informal references ("kobeissi") land on the account
// already tracked as @KobeissiLetter. done means a reply was already sent
// (ambiguity question or error) and the caller should stop; a nil account
// with done false means the handle is genuinely unknown.
func (b *Bot) resolveStored(ctx context.Context, chatID, userID int64, original, handle string) (account *models.MonitoredAccount, done bool) {
	known, err := b.store.KnownHandles(ctx)
	if err != nil {
		b.logger.Error("failed to load known handles", zap.Error(err))
		b.send(chatID, "Something went wrong. Try again?")
		return nil, true
	}

	match := intent.ResolveHandle(handle, known)
	if len(match.Ambiguous) > 0 {
		question := fmt.Sprintf("Did you mean @%s?", strings.Join(match.Ambiguous, " or @"))
		b.pending.setClarification(userID, original, question, chatID)
		b.send(chatID, question)
		return nil, true
	}
	if !match.Found {
		return nil, false
	}

	account, err = b.store.GetAccountByHandle(ctx, match.Handle)
	if err != nil {
		b.logger.Error("account lookup failed", zap.Error(err), zap.String("handle", match.Handle))
		b.send(chatID, "Something went wrong. Try again?")
		return nil, true
	}
	return account, false
}

func (b *Bot) addVoice(ctx context.Context, chatID, userID int64, handle string, pillars []models.Pillar) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		b.send(chatID, "Which account? Give me a handle, e.g. !addvoice @KobeissiLetter.")
		return
	}

	existing, done := b.resolveStored(ctx, chatID, userID, "add "+handle+" as a voice", handle)
	if done {
		return
	}

	if existing != nil {
		if err := b.store.SetVoiceReference(ctx, existing.ID, true, pillars); err != nil {
			b.logger.Error("failed to mark voice reference", zap.Error(err), zap.String("handle", handle))
			b.send(chatID, "Couldn't save that voice reference. Try again?")
			return
		}
		b.refreshSamplesFor(ctx, chatID, *existing)
		b.send(chatID, fmt.Sprintf("@%s is now a voice reference%s.", existing.TwitterHandle, pillarSuffix(pillars)))
		return
	}

	user, err := b.fetcher.GetUserByUsername(ctx, handle)
	if err != nil {
		b.logger.Error("twitter lookup failed", zap.Error(err), zap.String("handle", handle))
		b.send(chatID, "Couldn't reach Twitter to verify that handle. Try again in a bit?")
		return
	}
	if user == nil {
		b.send(chatID, fmt.Sprintf("I couldn't find @%s on Twitter. Typo?", handle))
		return
	}

	account := &models.MonitoredAccount{
		TwitterHandle:    user.Username,
		TwitterID:        user.ID,
		FollowerCount:    user.FollowerCount,
		IsVoiceReference: true,
		VoicePillars:     pillars,
		Priority:         2,
		IsActive:         true,
	}
	if err := b.store.CreateAccount(ctx, account); err != nil {
		b.logger.Error("failed to create voice account", zap.Error(err), zap.String("handle", handle))
		b.send(chatID, "Couldn't save that account. Try again?")
		return
	}

	b.refreshSamplesFor(ctx, chatID, *account)
	b.send(chatID, fmt.Sprintf("Added @%s as a voice reference%s and pulled their recent posts.", user.Username, pillarSuffix(pillars)))
}

func (b *Bot) addMonitor(ctx context.Context, chatID, userID int64, ents intent.Entities) {
	handle := strings.TrimPrefix(strings.TrimSpace(ents.Handle), "@")
	if handle == "" {
		b.send(chatID, "Which account should I monitor? Give me a handle.")
		return
	}
	if ents.Category == "" {
		b.pending.setClarification(userID, "add "+handle+" to monitoring", "Which category is @"+handle+"? (nigeria, argentina, colombia, global_macro, crypto_defi, reply_target)", chatID)
		b.send(chatID, fmt.Sprintf("Which category is @%s? (nigeria, argentina, colombia, global_macro, crypto_defi, reply_target)", handle))
		return
	}
	priority := ents.Priority
	if !models.ValidPriority(priority) {
		priority = 2
	}

	existing, done := b.resolveStored(ctx, chatID, userID, "add "+handle+" to monitoring", handle)
	if done {
		return
	}
	if existing != nil && existing.IsActive {
		b.send(chatID, fmt.Sprintf("@%s is already being monitored (%s, priority %d).", existing.TwitterHandle, existing.Category, existing.Priority))
		return
	}

	user, err := b.fetcher.GetUserByUsername(ctx, handle)
	if err != nil {
		b.logger.Error("twitter lookup failed", zap.Error(err), zap.String("handle", handle))
		b.send(chatID, "Couldn't reach Twitter to verify that handle. Try again in a bit?")
		return
	}
	if user == nil {
		b.send(chatID, fmt.Sprintf("I couldn't find @%s on Twitter. Typo?", handle))
		return
	}

	account := &models.MonitoredAccount{
		TwitterHandle: user.Username,
		TwitterID:     user.ID,
		Category:      ents.Category,
		Priority:      priority,
		FollowerCount: user.FollowerCount,
		IsActive:      true,
	}
	if err := b.store.CreateAccount(ctx, account); err != nil {
		b.logger.Error("failed to create monitored account", zap.Error(err), zap.String("handle", handle))
		b.send(chatID, "Couldn't save that account. Try again?")
		return
	}
	b.send(chatID, fmt.Sprintf("Monitoring @%s (%s, priority %d).", user.Username, ents.Category, priority))
}

func (b *Bot) removeAccount(ctx context.Context, chatID, userID int64, handle string) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		b.send(chatID, "Which account should I remove?")
		return
	}

	account, done := b.resolveStored(ctx, chatID, userID, "remove "+handle, handle)
	if done {
		return
	}
	if account == nil {
		b.send(chatID, fmt.Sprintf("I don't have @%s in my list. Try !monitors to see what's tracked.", handle))
		return
	}

	if err := b.store.DeactivateAccount(ctx, account.ID); err != nil {
		b.logger.Error("failed to deactivate account", zap.Error(err), zap.String("handle", account.TwitterHandle))
		b.send(chatID, "Couldn't remove that account. Try again?")
		return
	}
	b.send(chatID, fmt.Sprintf("Stopped monitoring @%s. Its history is kept.", account.TwitterHandle))
}

func (b *Bot) listVoices(ctx context.Context, chatID int64) {
	voices, err := b.store.VoiceReferences(ctx)
	if err != nil {
		b.logger.Error("failed to list voices", zap.Error(err))
		b.send(chatID, "Couldn't load the voice list. Try again?")
		return
	}
	if len(voices) == 0 {
		b.send(chatID, "No voice references yet. Add one with !addvoice @handle.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎙 Voice references:\n")
	for _, v := range voices {
		fmt.Fprintf(&sb, "• @%s%s\n", v.TwitterHandle, pillarSuffix(v.VoicePillars))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) listMonitors(ctx context.Context, chatID int64) {
	accounts, err := b.store.ActiveAccounts(ctx, "")
	if err != nil {
		b.logger.Error("failed to list accounts", zap.Error(err))
		b.send(chatID, "Couldn't load the monitor list. Try again?")
		return
	}
	sources, err := b.store.ActiveRSSSources(ctx)
	if err != nil {
		b.logger.Error("failed to list rss sources", zap.Error(err))
		b.send(chatID, "Couldn't load the monitor list. Try again?")
		return
	}

	if len(accounts) == 0 && len(sources) == 0 {
		b.send(chatID, "Nothing is being monitored yet. Add an account with !addmonitor @handle <category>.")
		return
	}

	var sb strings.Builder
	if len(accounts) > 0 {
		sb.WriteString("🐦 Twitter accounts:\n")
		for _, a := range accounts {
			fmt.Fprintf(&sb, "• @%s — %s, priority %d\n", a.TwitterHandle, a.Category, a.Priority)
		}
	}
	if len(sources) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("📰 RSS feeds:\n")
		for _, s := range sources {
			fmt.Fprintf(&sb, "• %s — %s, priority %d\n", s.Name, s.Category, s.Priority)
		}
	}
	b.send(chatID, sb.String())
}

func (b *Bot) tagVoice(ctx context.Context, chatID, userID int64, handle string, pillars []models.Pillar) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" || len(pillars) == 0 {
		b.send(chatID, "Tell me the handle and the pillar(s), e.g. !tagvoice @handle education.")
		return
	}

	account, done := b.resolveStored(ctx, chatID, userID, "tag "+handle, handle)
	if done {
		return
	}
	if account == nil {
		b.send(chatID, fmt.Sprintf("I don't have @%s. Add it first with !addvoice.", handle))
		return
	}

	if err := b.store.SetVoiceReference(ctx, account.ID, true, pillars); err != nil {
		b.logger.Error("failed to tag voice", zap.Error(err), zap.String("handle", account.TwitterHandle))
		b.send(chatID, "Couldn't save those tags. Try again?")
		return
	}
	b.send(chatID, fmt.Sprintf("Tagged @%s%s.", account.TwitterHandle, pillarSuffix(pillars)))
}

func (b *Bot) refreshVoices(ctx context.Context, chatID int64) {
	voices, err := b.store.VoiceReferences(ctx)
	if err != nil {
		b.logger.Error("failed to load voices", zap.Error(err))
		b.send(chatID, "Couldn't load the voice list. Try again?")
		return
	}
	if len(voices) == 0 {
		b.send(chatID, "No voice references to refresh.")
		return
	}

	refreshed := 0
	for _, v := range voices {
		if b.refreshSamplesFor(ctx, chatID, v) {
			refreshed++
		}
	}
	b.send(chatID, fmt.Sprintf("Refreshed samples for %d of %d voice reference(s).", refreshed, len(voices)))
}

// refreshSamplesFor pulls the account's recent tweets and replaces its
// stored voice samples wholesale.
func (b *Bot) refreshSamplesFor(ctx context.Context, chatID int64, account models.MonitoredAccount) bool {
	twitterID := account.TwitterID
	if twitterID == "" {
		user, err := b.fetcher.GetUserByUsername(ctx, account.TwitterHandle)
		if err != nil || user == nil {
			b.logger.Warn("voice sample refresh: user lookup failed",
				zap.Error(err),
				zap.String("handle", account.TwitterHandle))
			return false
		}
		twitterID = user.ID
	}

	tweets, err := b.fetcher.GetUserTweets(ctx, twitterID, "", voiceSampleCount)
	if err != nil {
		b.logger.Warn("voice sample refresh: fetch failed",
			zap.Error(err),
			zap.String("handle", account.TwitterHandle))
		return false
	}

	samples := make([]models.VoiceSample, 0, len(tweets))
	for _, t := range tweets {
		samples = append(samples, models.VoiceSample{
			AccountID: account.ID,
			TweetID:   t.ID,
			Content:   t.Text,
		})
	}
	if err := b.store.ReplaceVoiceSamples(ctx, account.ID, samples); err != nil {
		b.logger.Error("voice sample refresh: store failed",
			zap.Error(err),
			zap.String("handle", account.TwitterHandle))
		return false
	}
	return true
}

func (b *Bot) generatePost(ctx context.Context, chatID, userID int64, pillars []models.Pillar, topic string) {
	pillar := models.PillarMarketCommentary
	if len(pillars) > 0 {
		pillar = pillars[0]
	}
	if topic == "" {
		topic = b.generator.SuggestTopic(ctx, pillar)
	}
	if topic == "" {
		b.send(chatID, "What should the post be about?")
		return
	}

	content, prompt, err := b.generator.Generate(ctx, pillar, topic)
	if err != nil {
		b.logger.Error("draft generation failed",
			zap.Error(err),
			zap.String("pillar", string(pillar)),
			zap.String("topic", topic))
		b.send(chatID, "Sorry, I couldn't generate a draft right now. Try again?")
		return
	}

	msg := fmt.Sprintf("Draft v0 (%s — %s):\n\n%s\n\nReply with changes, or say \"looks good\" to approve.",
		strings.ReplaceAll(string(pillar), "_", " "), topic, content)
	sent, err := b.sender.Send(tgbotapi.NewMessage(chatID, msg))
	if err != nil {
		b.logger.Error("failed to send draft", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}

	threadID := fmt.Sprintf("%d:%d", chatID, sent.MessageID)
	if _, err := b.sessions.Create(threadID, userID, pillar, topic, prompt, content); err != nil {
		b.logger.Error("failed to open draft session", zap.Error(err), zap.String("thread_id", threadID))
		return
	}
	b.registerThreadMessage(sent.MessageID, threadID)

	record := models.ContentHistory{
		Type:    models.ContentWeeklyPost,
		Pillar:  pillar,
		Topic:   topic,
		Content: content,
	}
	if err := b.store.AddContentHistory(ctx, record); err != nil {
		b.logger.Warn("failed to record content history", zap.Error(err), zap.String("topic", topic))
	}
}

// generateBatch drafts the weekly batch: one post per pillar, each in its
// own thread with its own session.
func (b *Bot) generateBatch(ctx context.Context, chatID, userID int64) {
	b.send(chatID, "Drafting this week's batch — one post per pillar.")
	for _, pillar := range models.Pillars {
		b.generatePost(ctx, chatID, userID, []models.Pillar{pillar}, "")
	}
}

func pillarSuffix(pillars []models.Pillar) string {
	if len(pillars) == 0 {
		return ""
	}
	names := make([]string, len(pillars))
	for i, p := range pillars {
		names[i] = strings.ReplaceAll(string(p), "_", " ")
	}
	return " for " + strings.Join(names, ", ")
}

const helpText = `Here's what I can do:

Monitoring
  !addmonitor @handle <category> [priority] — track an account for signals
  !remove @handle — stop tracking an account
  !monitors — list everything being tracked

Voice
  !addvoice @handle [pillar ...] — add a voice reference account
  !tagvoice @handle <pillar ...> — tag a voice to content pillars
  !refreshvoices — re-pull samples for all voices
  !voices — list voice references

Content
  !generate [pillar] [topic] — draft a post; reply in the thread to revise,
  say "looks good" (or react 👍) to approve
  !generate-batch — draft the weekly batch, one post per pillar

You can also just ask in plain language, e.g. "add @KobeissiLetter as a
voice for market commentary".`
