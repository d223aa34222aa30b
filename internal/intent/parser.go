package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/models"
)

const systemPrompt = `You are parsing chat messages for a content management bot. Extract the user's intent and entities.

Available intents:
- add_voice: Add a Twitter account as a voice reference (to mimic their writing style)
- add_monitor: Add a Twitter account to monitor for news
- remove_account: Stop monitoring an account or remove a voice reference
- list_voices: List voice reference accounts
- list_monitors: List monitored accounts (optionally by category)
- tag_voice: Update which pillars a voice applies to
- refresh_voices: Refresh voice samples from Twitter
- generate_post: Generate content for a pillar
- generate_batch: Generate the weekly batch (one post per pillar)
- help: User wants help or doesn't know what the bot can do
- unknown: Can't determine intent or message is unrelated to bot functions

Content pillars: market_commentary, education, product, social_proof
Account categories: nigeria, argentina, colombia, global_macro, crypto_defi, reply_target
Priority: 1 (high), 2 (medium), 3 (low) - default is 2

For Twitter handles extract just the username without @. Common variations: "kobeissi", "@KobeissiLetter", "the kobeissi letter" should all become "KobeissiLetter".

For pillars:
- "market commentary" or "market" -> "market_commentary"
- "education" or "educational" -> "education"
- "product" -> "product"
- "social proof" or "testimonials" -> "social_proof"

For categories:
- "nigeria" or "nigerian" or "NGN" or "naira" -> "nigeria"
- "argentina" or "argentine" or "ARS" or "peso" -> "argentina"
- "colombia" or "colombian" or "COP" -> "colombia"
- "global" or "macro" -> "global_macro"
- "crypto" or "defi" -> "crypto_defi"

Return ONLY valid JSON (no markdown, no explanation):
{
  "intent": "one of the intents above",
  "confidence": 0.0 to 1.0,
  "entities": {
    "handle": "twitter_handle or null",
    "pillars": ["pillar1", "pillar2"] or [],
    "category": "category or null",
    "priority": 1-3 or null,
    "topic": "topic hint or null"
  },
  "clarification_needed": "question to ask user, or null if clear"
}

Examples:
- "add kobeissi as a voice for market commentary" -> add_voice, handle: "kobeissi", pillars: ["market_commentary"]
- "generate an education post about funding rates" -> generate_post, pillars: ["education"], topic: "funding rates"
- "what voices do we have?" -> list_voices
- "hello" or "thanks" -> unknown (friendly but not actionable)`

// Parser classifies free-text messages into structured intents. The
// collaborator's output is treated as untrusted: labels outside the
// closed set, out-of-range confidence, and unknown pillars or categories
// are all normalized away before the result leaves this package.
type Parser struct {
	completer agent.Completer
	logger    *zap.Logger
}

func NewParser(completer agent.Completer, logger *zap.Logger) *Parser {
	return &Parser{completer: completer, logger: logger}
}

type wireEntities struct {
	Handle   *string  `json:"handle"`
	Pillars  []string `json:"pillars"`
	Category *string  `json:"category"`
	Priority *int     `json:"priority"`
	Topic    *string  `json:"topic"`
}

type wireResult struct {
	Intent              string       `json:"intent"`
	Confidence          float64      `json:"confidence"`
	Entities            wireEntities `json:"entities"`
	ClarificationNeeded *string      `json:"clarification_needed"`
}

func unknownResult() Result {
	return Result{Intent: IntentUnknown, Confidence: 0}
}

// Classify parses one message. Degrades to unknown/0 on any upstream or
// schema failure; never errors.
func (p *Parser) Classify(ctx context.Context, message string) Result {
	if strings.TrimSpace(message) == "" {
		return unknownResult()
	}

	raw, err := p.completer.Complete(ctx, systemPrompt, message)
	if err != nil {
		p.logger.Warn("intent call failed", zap.Error(err))
		return unknownResult()
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(agent.StripJSONFence(raw)), &wire); err != nil {
		p.logger.Warn("unparseable intent response", zap.Error(err), zap.String("raw", truncate(raw, 200)))
		return unknownResult()
	}

	res := Result{Intent: IntentUnknown}
	for _, known := range allIntents {
		if string(known) == wire.Intent {
			res.Intent = known
			break
		}
	}

	res.Confidence = wire.Confidence
	if res.Confidence < 0 {
		res.Confidence = 0
	} else if res.Confidence > 1 {
		res.Confidence = 1
	}

	if wire.Entities.Handle != nil {
		res.Entities.Handle = strings.TrimPrefix(strings.TrimSpace(*wire.Entities.Handle), "@")
	}
	for _, raw := range wire.Entities.Pillars {
		if pillar, ok := NormalizePillar(raw); ok {
			res.Entities.Pillars = append(res.Entities.Pillars, pillar)
		}
	}
	if wire.Entities.Category != nil {
		if cat, ok := NormalizeCategory(*wire.Entities.Category); ok {
			res.Entities.Category = cat
		}
	}
	if wire.Entities.Priority != nil && models.ValidPriority(*wire.Entities.Priority) {
		res.Entities.Priority = *wire.Entities.Priority
	}
	if wire.Entities.Topic != nil {
		res.Entities.Topic = strings.TrimSpace(*wire.Entities.Topic)
	}
	if wire.ClarificationNeeded != nil {
		res.ClarificationNeeded = strings.TrimSpace(*wire.ClarificationNeeded)
	}

	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
