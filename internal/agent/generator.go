package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/models"
)

// PromptContext supplies the stored context injected into generation
// prompts: confirmed learnings, voice samples, and recently used topics.
type PromptContext interface {
	FeedbackForPrompt(ctx context.Context, pillar models.Pillar, limit int) (string, error)
	VoiceSamplesForPillar(ctx context.Context, pillar models.Pillar, limit int) ([]models.VoiceSample, error)
	RecentTopics(ctx context.Context, pillar models.Pillar, limit int) ([]string, error)
}

type versionContext struct {
	Number          int
	Content         string
	RevisionRequest string
}

// DraftVersion mirrors one entry of a session's version history for
// revision prompts.
type DraftVersion struct {
	Number          int
	Content         string
	RevisionRequest string
}

// Generator produces draft content for a pillar and topic.
type Generator struct {
	completer Completer
	store     PromptContext
	logger    *zap.Logger
}

func NewGenerator(completer Completer, store PromptContext, logger *zap.Logger) *Generator {
	return &Generator{completer: completer, store: store, logger: logger}
}

func (g *Generator) promptContext(ctx context.Context, pillar models.Pillar) (learnings, samples string) {
	learnings, err := g.store.FeedbackForPrompt(ctx, pillar, 5)
	if err != nil {
		g.logger.Warn("failed to load feedback for prompt", zap.Error(err), zap.String("pillar", string(pillar)))
	}

	voiceSamples, err := g.store.VoiceSamplesForPillar(ctx, pillar, 5)
	if err != nil {
		g.logger.Warn("failed to load voice samples", zap.Error(err), zap.String("pillar", string(pillar)))
	}
	var b strings.Builder
	for _, s := range voiceSamples {
		fmt.Fprintf(&b, "- %s\n", s.Content)
	}
	return learnings, b.String()
}

// Generate produces the initial draft (version 0) for a session. The
// returned prompt is stored on the session as provenance.
func (g *Generator) Generate(ctx context.Context, pillar models.Pillar, topic string) (content, prompt string, err error) {
	learnings, samples := g.promptContext(ctx, pillar)
	system := generateSystemPrompt(pillar, learnings, samples)
	prompt = fmt.Sprintf("Write a post for the %s pillar about: %s", pillar, topic)

	content, err = g.completer.Complete(ctx, system, prompt)
	if err != nil {
		return "", "", fmt.Errorf("generate draft: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", "", fmt.Errorf("generate draft: empty response")
	}
	return strings.TrimSpace(content), prompt, nil
}

// Revise produces the next draft version. The full ordered history plus
// the new request goes into the prompt so context compounds across turns.
func (g *Generator) Revise(ctx context.Context, pillar models.Pillar, topic string, history []DraftVersion, request string) (string, error) {
	learnings, samples := g.promptContext(ctx, pillar)
	system := generateSystemPrompt(pillar, learnings, samples)

	hist := make([]versionContext, len(history))
	for i, v := range history {
		hist[i] = versionContext{Number: v.Number, Content: v.Content, RevisionRequest: v.RevisionRequest}
	}

	content, err := g.completer.Complete(ctx, system, revisionUserPrompt(topic, hist, request))
	if err != nil {
		return "", fmt.Errorf("revise draft: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("revise draft: empty response")
	}
	return strings.TrimSpace(content), nil
}

// topicPools drive topic suggestions when the user asks for a pillar post
// without naming a topic.
var topicPools = map[models.Pillar][]string{
	models.PillarMarketCommentary: {
		"NGN weekly performance",
		"ARS weekly performance",
		"COP weekly performance",
		"Cross-currency comparison",
		"P2P spread analysis",
		"Central bank impact",
		"Inflation data reaction",
		"Parallel market dynamics",
	},
	models.PillarEducation: {
		"What are perpetuals",
		"Understanding leverage",
		"Funding rates explained",
		"Hedging with perpetuals",
		"Long vs short positions",
		"Margin and liquidation",
		"Position sizing basics",
		"Stop losses and take profits",
	},
	models.PillarProduct: {
		"Trading interface walkthrough",
		"Deposit and withdrawal",
		"Leverage options",
		"Supported pairs",
		"Fee structure",
		"Order types",
	},
	models.PillarSocialProof: {
		"Volume milestone",
		"User growth",
		"Community highlight",
		"New market launch",
	},
}

// SuggestTopic picks the first pool topic not used recently for the
// pillar, falling back to the head of the pool when everything has been
// used. Rotation, not randomness, so coverage is even.
func (g *Generator) SuggestTopic(ctx context.Context, pillar models.Pillar) string {
	pool := topicPools[pillar]
	if len(pool) == 0 {
		return ""
	}

	recent, err := g.store.RecentTopics(ctx, pillar, len(pool))
	if err != nil {
		g.logger.Warn("failed to load recent topics", zap.Error(err), zap.String("pillar", string(pillar)))
		return pool[0]
	}

	used := make(map[string]bool, len(recent))
	for _, t := range recent {
		used[strings.ToLower(t)] = true
	}
	for _, topic := range pool {
		if !used[strings.ToLower(topic)] {
			return topic
		}
	}
	return pool[0]
}
