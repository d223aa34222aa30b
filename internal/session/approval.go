package session

import "strings"

// approvalPhrases is the closed set of approval signals. Matching is
// case-insensitive substring containment, so "Perfect, thanks!" approves.
var approvalPhrases = []string{
	"perfect",
	"done",
	"approved",
	"looks good",
	"ship it",
	"lock it",
	"👍",
	"✅",
}

// IsApproval reports whether a reply text counts as an approval signal.
func IsApproval(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range approvalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// approvalReactions are the reaction emoji that count as approval.
var approvalReactions = map[string]bool{
	"👍": true,
	"✅": true,
	"🚀": true,
}

// IsApprovalReaction reports whether a reaction emoji counts as approval.
func IsApprovalReaction(emoji string) bool {
	return approvalReactions[emoji]
}
