package intent

import "github.com/marksfx/content-agent/internal/models"

// Intent is one of the closed set of message intents.
type Intent string

const (
	IntentAddVoice      Intent = "add_voice"
	IntentAddMonitor    Intent = "add_monitor"
	IntentRemoveAccount Intent = "remove_account"
	IntentListVoices    Intent = "list_voices"
	IntentListMonitors  Intent = "list_monitors"
	IntentTagVoice      Intent = "tag_voice"
	IntentRefreshVoices Intent = "refresh_voices"
	IntentGeneratePost  Intent = "generate_post"
	IntentGenerateBatch Intent = "generate_batch"
	IntentHelp          Intent = "help"
	IntentUnknown       Intent = "unknown"
)

var allIntents = []Intent{
	IntentAddVoice, IntentAddMonitor, IntentRemoveAccount,
	IntentListVoices, IntentListMonitors, IntentTagVoice,
	IntentRefreshVoices, IntentGeneratePost, IntentGenerateBatch,
	IntentHelp, IntentUnknown,
}

// Entities carries the intent-specific extracted values. Zero values mean
// "not provided".
type Entities struct {
	Handle   string
	Pillars  []models.Pillar
	Category models.Category
	Priority int
	Topic    string
}

// Result is the outcome of classifying one message. Ephemeral: produced
// and consumed within a single message-handling step.
type Result struct {
	Intent              Intent
	Confidence          float64
	Entities            Entities
	ClarificationNeeded string
}

// Decision is what the caller should do with a classification.
type Decision int

const (
	// DecisionExecute runs the action directly.
	DecisionExecute Decision = iota
	// DecisionClarify surfaces the clarification question and suspends.
	DecisionClarify
	// DecisionConfirm requires an explicit yes/no before executing.
	DecisionConfirm
	// DecisionHelp directs the user to explicit help.
	DecisionHelp
)

const (
	executeThreshold = 0.7
	rejectThreshold  = 0.5
)

// destructive intents always require confirmation below the execute
// threshold's certainty.
func destructive(i Intent) bool {
	return i == IntentRemoveAccount
}

// Decide applies the execution policy: confidence >= 0.7 with no pending
// clarification is the only path to direct execution.
func Decide(r Result) Decision {
	if r.ClarificationNeeded != "" {
		return DecisionClarify
	}
	if r.Confidence < rejectThreshold {
		return DecisionHelp
	}
	if r.Confidence < executeThreshold {
		return DecisionConfirm
	}
	if destructive(r.Intent) && r.Confidence < 0.8 {
		return DecisionConfirm
	}
	return DecisionExecute
}
