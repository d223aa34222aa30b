package intent

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/marksfx/content-agent/internal/models"
)

// pillarAliases maps free-text pillar names to canonical tokens.
var pillarAliases = map[string]models.Pillar{
	"market_commentary": models.PillarMarketCommentary,
	"market commentary": models.PillarMarketCommentary,
	"market":            models.PillarMarketCommentary,
	"commentary":        models.PillarMarketCommentary,
	"education":         models.PillarEducation,
	"educational":       models.PillarEducation,
	"product":           models.PillarProduct,
	"social_proof":      models.PillarSocialProof,
	"social proof":      models.PillarSocialProof,
	"testimonials":      models.PillarSocialProof,
}

// categoryAliases maps free-text category names to canonical tokens.
var categoryAliases = map[string]models.Category{
	"nigeria":      models.CategoryNigeria,
	"nigerian":     models.CategoryNigeria,
	"ngn":          models.CategoryNigeria,
	"naira":        models.CategoryNigeria,
	"argentina":    models.CategoryArgentina,
	"argentine":    models.CategoryArgentina,
	"ars":          models.CategoryArgentina,
	"peso":         models.CategoryArgentina,
	"colombia":     models.CategoryColombia,
	"colombian":    models.CategoryColombia,
	"cop":          models.CategoryColombia,
	"global_macro": models.CategoryGlobalMacro,
	"global macro": models.CategoryGlobalMacro,
	"global":       models.CategoryGlobalMacro,
	"macro":        models.CategoryGlobalMacro,
	"crypto_defi":  models.CategoryCryptoDefi,
	"crypto defi":  models.CategoryCryptoDefi,
	"crypto":       models.CategoryCryptoDefi,
	"defi":         models.CategoryCryptoDefi,
	"reply_target": models.CategoryReplyTarget,
	"reply target": models.CategoryReplyTarget,
}

var priorityWords = map[string]int{
	"1": 1, "high": 1, "urgent": 1,
	"2": 2, "medium": 2, "normal": 2,
	"3": 3, "low": 3,
}

// NormalizePillar resolves a free-text pillar name to its canonical token.
func NormalizePillar(s string) (models.Pillar, bool) {
	p, ok := pillarAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// NormalizeCategory resolves a free-text category name to its canonical token.
func NormalizeCategory(s string) (models.Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// NormalizePriority resolves a free-text priority word to its numeric tier.
func NormalizePriority(s string) (int, bool) {
	p, ok := priorityWords[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// Fuzzy matches beyond this edit distance are not considered at all.
const maxHandleDistance = 5

// Two candidates within this margin of each other are ambiguous.
const ambiguityMargin = 1

// HandleMatch is the outcome of fuzzy handle resolution.
type HandleMatch struct {
	Handle string
	// Ambiguous holds the competing candidates when resolution could not
	// pick a single winner; the caller must ask, not guess.
	Ambiguous []string
	Found     bool
}

// ResolveHandle resolves user-supplied handle text against the known
// account set. Exact matches (case-insensitive) win outright; otherwise
// the closest handle by edit distance is chosen, with substring
// containment counted as a strong signal. Two candidates within the
// ambiguity margin are surfaced for clarification instead of guessed.
func ResolveHandle(input string, known []string) HandleMatch {
	input = strings.TrimPrefix(strings.TrimSpace(input), "@")
	if input == "" || len(known) == 0 {
		return HandleMatch{}
	}
	lower := strings.ToLower(input)

	type candidate struct {
		handle string
		dist   int
	}
	var candidates []candidate

	for _, handle := range known {
		h := strings.ToLower(handle)
		if h == lower {
			return HandleMatch{Handle: handle, Found: true}
		}
		dist := levenshtein.ComputeDistance(lower, h)
		// "kobeissi" should find "KobeissiLetter": containment trims the
		// penalty for the extra characters.
		if strings.Contains(h, lower) || strings.Contains(lower, h) {
			dist = 1
		}
		if dist <= maxHandleDistance {
			candidates = append(candidates, candidate{handle: handle, dist: dist})
		}
	}

	if len(candidates) == 0 {
		return HandleMatch{}
	}

	best := candidates[0]
	secondBest := candidate{dist: maxHandleDistance + ambiguityMargin + 1}
	for _, c := range candidates[1:] {
		switch {
		case c.dist < best.dist:
			secondBest = best
			best = c
		case c.dist < secondBest.dist:
			secondBest = c
		}
	}

	if secondBest.dist-best.dist <= ambiguityMargin && secondBest.handle != "" {
		return HandleMatch{Ambiguous: []string{best.handle, secondBest.handle}}
	}
	return HandleMatch{Handle: best.handle, Found: true}
}
