package domain

// Intent is the closed set of response paths. Classification output that
// doesn't match one of these falls back to IntentSafety.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentEmergency Intent = "emergency"
	IntentLocation  Intent = "location"
	IntentSafety    Intent = "safety"
	IntentGeneral   Intent = "general"
)

// ValidIntent reports whether s is one of the five known labels.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentGreeting, IntentEmergency, IntentLocation, IntentSafety, IntentGeneral:
		return true
	}
	return false
}

// Message is one turn of a conversation, most-recent-last in histories.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Passage is one retrieved knowledge-base chunk.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}
