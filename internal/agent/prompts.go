package agent

import (
	"fmt"
	"strings"

	"github.com/marksfx/content-agent/internal/models"
)

// voiceProfile is the baseline style guide injected into every generation
// prompt, ahead of pillar guidance and confirmed learnings.
const voiceProfile = `## Voice Guidelines

### Structure
- Use "BREAKING:" for major news (central bank announcements, big moves)
- Use emoji bullets for scannable lists
- Clean dashes for product/feature announcements
- Short paragraphs, no walls of text

### Data
- Always include specific numbers (%, $, price levels)
- Reference current prices and compare to timeframes

### Tone
- Confident, not hype
- Analytical, not promotional
- "Here's what happened" not "We're excited to announce"
- Direct, no corporate speak`

// pillarGuidance maps each pillar to its goal and tone.
var pillarGuidance = map[models.Pillar]string{
	models.PillarMarketCommentary: "Goal: relevance — show we understand the markets traders live in. Tone: observational, data-driven, not predictive.",
	models.PillarEducation:        "Goal: understanding — reduce friction by teaching how the product works. Tone: simple, clear, no jargon assumed.",
	models.PillarProduct:          "Goal: credibility — prove the product works. Tone: demonstrative, not salesy.",
	models.PillarSocialProof:      "Goal: momentum — create legitimacy. Tone: celebratory but not exaggerated.",
}

// baseKeywords pass the relevance pre-filter for every category.
var baseKeywords = []string{
	"central bank", "monetary policy", "interest rate", "rate decision",
	"fx", "forex", "perpetual", "leverage", "hedging", "hedge",
	"trading", "currency", "exchange rate", "inflation", "devaluation",
	"usdt", "usdc", "stablecoin", "tether", "defi", "funding rate",
	"p2p", "parallel market", "dollar index", "dxy",
}

// categoryKeywords extend the pre-filter per source category.
var categoryKeywords = map[models.Category][]string{
	models.CategoryNigeria:     {"ngn", "naira", "nigeria", "nigerian", "cbn"},
	models.CategoryArgentina:   {"ars", "peso", "argentina", "argentine", "bcra", "dólar blue", "dolar blue", "cepo", "brecha cambiaria"},
	models.CategoryColombia:    {"cop", "colombia", "colombian", "banrep"},
	models.CategoryGlobalMacro: {"fed", "federal reserve", "ecb", "boj", "boe", "snb", "eur", "gbp", "jpy", "mpc"},
	models.CategoryCryptoDefi:  {"perps", "perpetuals", "mica", "circle", "paxos", "pyusd", "synthetic dollar"},
	models.CategoryReplyTarget: {},
}

// matchesKeywords reports whether content contains any relevance keyword
// for the category. reply_target sources skip the filter entirely.
func matchesKeywords(content string, category models.Category) bool {
	if category == models.CategoryReplyTarget {
		return true
	}
	lower := strings.ToLower(content)
	for _, kw := range baseKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range categoryKeywords[category] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const relevanceSystemPrompt = `You score social and news signals for a stablecoin FX trading platform serving emerging-market traders.

Classify each item as one of:
- "news": breaking or market-moving information worth reacting to publicly
- "reply_opportunity": a conversation worth joining with an informed reply
- "skip": not relevant or not actionable

Return ONLY valid JSON (no markdown, no explanation):
{
  "score": 0.0 to 1.0,
  "type": "news" | "reply_opportunity" | "skip",
  "reasoning": "one sentence",
  "suggested_content": "a draft post or reply, or null"
}`

func relevanceUserPrompt(content, sourceType, sourceName string, category models.Category) string {
	return fmt.Sprintf(`Source type: %s
Source: %s
Category: %s

Content:
%s`, sourceType, sourceName, strings.ReplaceAll(string(category), "_", " "), content)
}

func generateSystemPrompt(pillar models.Pillar, learnings, samples string) string {
	var b strings.Builder
	b.WriteString("You write social posts for a stablecoin FX trading platform.\n\n")
	b.WriteString(voiceProfile)
	b.WriteString("\n\n### Pillar\n")
	b.WriteString(pillarGuidance[pillar])
	if learnings != "" {
		b.WriteString("\n\n")
		b.WriteString(learnings)
	}
	if samples != "" {
		b.WriteString("\n\n### Style exemplars\nMatch the register of these sample posts:\n")
		b.WriteString(samples)
	}
	b.WriteString("\n\nReturn only the post text, nothing else.")
	return b.String()
}

func revisionUserPrompt(topic string, history []versionContext, request string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nDraft history, oldest first:\n", topic)
	for _, v := range history {
		fmt.Fprintf(&b, "\n--- Version %d ---\n", v.Number)
		if v.RevisionRequest != "" {
			fmt.Fprintf(&b, "(revision request: %s)\n", v.RevisionRequest)
		}
		b.WriteString(v.Content)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nRevise the latest version per this request: %s\n", request)
	b.WriteString("Keep everything from earlier revisions that the user did not ask to change.")
	return b.String()
}

const learningSystemPrompt = `You distill draft-revision history into durable style preferences.

Given the versions of one post and the revision requests between them, extract style preferences that GENERALIZE to future content: tone, length, formatting, emoji usage, structure.

Rules:
- Only include preferences that apply to future posts, not this topic
- Generalize: "less emojis" becomes "minimal or no emojis"
- Never repeat a revision request verbatim
- Skip one-off, topic-specific instructions entirely

Return ONLY a JSON array of short statements, e.g. ["minimal or no emojis", "keep posts under 100 words"]. Return [] if nothing generalizes.`

const filterExceptSystemPrompt = `The user approved a list of style learnings except for some. Given the numbered list and the user's reply, return ONLY a JSON array with the 1-based indexes of the learnings to KEEP.`
