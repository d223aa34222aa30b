package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/models"
)

// Extractor mines a session's revision history for generalizable style
// preferences. Best effort: anything unparseable yields an empty list,
// and the user confirms every proposal before it is persisted.
type Extractor struct {
	completer Completer
	logger    *zap.Logger
}

func NewExtractor(completer Completer, logger *zap.Logger) *Extractor {
	return &Extractor{completer: completer, logger: logger}
}

// Extract returns candidate learnings for the pillar. Never errors:
// upstream failure or malformed output degrades to no learnings.
func (e *Extractor) Extract(ctx context.Context, pillar models.Pillar, versions []DraftVersion) []string {
	if len(versions) < 2 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pillar: %s\n", pillar)
	for _, v := range versions {
		fmt.Fprintf(&b, "\n--- Version %d ---\n", v.Number)
		if v.RevisionRequest != "" {
			fmt.Fprintf(&b, "Revision request: %s\n", v.RevisionRequest)
		}
		b.WriteString(v.Content)
		b.WriteString("\n")
	}

	raw, err := e.completer.Complete(ctx, learningSystemPrompt, b.String())
	if err != nil {
		e.logger.Warn("learning extraction failed", zap.Error(err), zap.String("pillar", string(pillar)))
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(StripJSONFence(raw)), &items); err != nil {
		e.logger.Warn("unparseable learning response", zap.Error(err))
		return nil
	}

	// The prompt forbids echoing revision requests, but the collaborator
	// is untrusted output: drop verbatim echoes here too.
	requests := make(map[string]bool, len(versions))
	for _, v := range versions {
		if v.RevisionRequest != "" {
			requests[strings.ToLower(strings.TrimSpace(v.RevisionRequest))] = true
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || requests[strings.ToLower(item)] {
			continue
		}
		out = append(out, item)
	}
	return out
}

// FilterExcept narrows a proposed learning list per a reply like
// "yes, except the one about length". On any failure the full list is
// returned so the user's "yes" still wins.
func (e *Extractor) FilterExcept(ctx context.Context, learnings []string, reply string) []string {
	if len(learnings) == 0 {
		return learnings
	}

	var b strings.Builder
	b.WriteString("Learnings:\n")
	for i, l := range learnings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	fmt.Fprintf(&b, "\nUser reply: %s\n", reply)

	raw, err := e.completer.Complete(ctx, filterExceptSystemPrompt, b.String())
	if err != nil {
		e.logger.Warn("learning filter failed, keeping all", zap.Error(err))
		return learnings
	}

	var keep []int
	if err := json.Unmarshal([]byte(StripJSONFence(raw)), &keep); err != nil {
		e.logger.Warn("unparseable learning filter response, keeping all", zap.Error(err))
		return learnings
	}

	out := make([]string, 0, len(keep))
	for _, idx := range keep {
		if idx >= 1 && idx <= len(learnings) {
			out = append(out, learnings[idx-1])
		}
	}
	return out
}
