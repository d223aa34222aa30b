package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/models"
)

// SourceMeta describes where a scored item came from.
type SourceMeta struct {
	Type     models.SourceType
	Name     string
	Category models.Category
}

// Score is the validated result of relevance scoring.
type Score struct {
	Value            float64
	Type             models.RelevanceType
	Reasoning        string
	SuggestedContent string
}

func skipScore(value float64, reason string) Score {
	return Score{Value: value, Type: models.RelevanceSkip, Reasoning: reason}
}

// Scorer classifies text items into news / reply_opportunity / skip.
// The judgment itself is delegated to the collaborator; this type owns the
// surrounding contract: keyword pre-filter, schema validation, clamping,
// and degrading malformed output to skip instead of failing.
type Scorer struct {
	completer Completer
	logger    *zap.Logger
}

func NewScorer(completer Completer, logger *zap.Logger) *Scorer {
	return &Scorer{completer: completer, logger: logger}
}

type relevanceResponse struct {
	Score            float64 `json:"score"`
	Type             string  `json:"type"`
	Reasoning        string  `json:"reasoning"`
	SuggestedContent *string `json:"suggested_content"`
}

// Score never returns an error: any upstream or parse failure degrades to
// skip with score 0 so a bad response cannot take down a polling cycle.
func (s *Scorer) Score(ctx context.Context, content string, meta SourceMeta) Score {
	if strings.TrimSpace(content) == "" {
		return skipScore(0, "empty content")
	}

	// Cheap short-circuit before the expensive call.
	if !matchesKeywords(content, meta.Category) {
		return skipScore(0.1, "no relevant keywords found")
	}

	sourceType := "Tweet"
	if meta.Type == models.SourceRSS {
		sourceType = "RSS article"
	}

	raw, err := s.completer.Complete(ctx, relevanceSystemPrompt,
		relevanceUserPrompt(content, sourceType, meta.Name, meta.Category))
	if err != nil {
		s.logger.Warn("relevance call failed, skipping item",
			zap.Error(err),
			zap.String("source", meta.Name))
		return skipScore(0, "scoring unavailable")
	}

	var resp relevanceResponse
	if err := json.Unmarshal([]byte(StripJSONFence(raw)), &resp); err != nil {
		s.logger.Warn("unparseable relevance response, skipping item",
			zap.Error(err),
			zap.String("source", meta.Name))
		return skipScore(0, "unparseable response")
	}

	relType := models.RelevanceType(resp.Type)
	switch relType {
	case models.RelevanceNews, models.RelevanceReplyOpportunity, models.RelevanceSkip:
	default:
		return skipScore(0, "unknown relevance type")
	}

	// Out-of-range scores are coerced, never persisted.
	if resp.Score < 0 || resp.Score > 1 {
		s.logger.Warn("relevance score out of range, coercing to skip",
			zap.Float64("score", resp.Score),
			zap.String("source", meta.Name))
		return skipScore(0, "score out of range")
	}

	suggested := ""
	if resp.SuggestedContent != nil {
		suggested = strings.TrimSpace(*resp.SuggestedContent)
	}

	return Score{
		Value:            resp.Score,
		Type:             relType,
		Reasoning:        resp.Reasoning,
		SuggestedContent: suggested,
	}
}
