package app

import (
	"fmt"
	"strings"

	"guardia/internal/domain"
)

// historyWindow is how many trailing conversation turns are folded into
// prompts. Older turns are dropped.
const historyWindow = 8

// Emergency numbers are literal constants. They must appear verbatim in
// every emergency-path output, including all failure fallbacks; they are
// never fetched from anywhere.
const emergencyNumbersBlock = `- Police: 100
- Ambulance: 102
- Women Helpline: 1091
- All Emergency: 112`

const greetingReply = "Welcome, how can I help you?"

const noKnowledgeReply = "I don't have specific information about that in my knowledge base. However, I'm here to help with women's safety. Could you ask me something more specific about safety tips, precautions, or emergency situations?"

const shareLocationReply = "I'd love to help you find nearby services. Could you tell me which area or city you're in?"

const apologyReply = "I apologize, but I ran into a problem while answering. Please try again in a moment."

const emergencyFallback = `EMERGENCY ASSISTANCE

I'm here with you. This sounds serious, and your safety is the priority right now.

Immediate actions:
1. Call emergency services:
` + emergencyNumbersBlock + `
2. Share your location with trusted contacts.
3. Move to a safe, public place if possible.
4. Keep your phone charged and accessible.

Stay with me. How can I help you right now?`

const personaPrompt = `You are Guardia, a caring companion and trusted friend for women's safety. You are warm and genuinely supportive, like a wise sister who listens first.

How to respond:
- Keep responses conversational and under 100 words.
- Reference earlier messages so she knows you are listening.
- For safety concerns: validate feelings, give one or two immediately actionable tips, and ask about her current status.
- For emotional moments: validate, encourage, and ask to learn more.
- Outside your scope: gently redirect to safety and wellbeing topics.
- Frame advice as "you've got this", never as fear. End with a question unless the conversation is clearly closing.`

// buildContext folds the trailing history window plus the current query
// into a transcript, most recent last.
func buildContext(history []domain.Message, query string) string {
	var b strings.Builder
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	for _, m := range history[start:] {
		speaker := "Guardia"
		if m.Role == "user" {
			speaker = "User"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(query)
	return b.String()
}

func classificationPrompt(transcript, query string) string {
	return fmt.Sprintf(`You are an intent classifier for a women's safety assistant.
Classify the user's message into exactly one of these categories:

1. greeting - greetings, introductions, initial conversations
   Examples: "hello", "hi there", "good morning", "how are you"

2. emergency - ONLY actual emergencies where someone is in immediate danger
   Examples: "someone is following me", "I'm being threatened", "I need urgent help"
   Note: context matters. "Help me please" alone is NOT an emergency unless context suggests danger.

3. location - finding nearby services or places
   Examples: "where is the nearest hospital", "find police stations near me", "safe places nearby"

4. safety - safety tips, advice, general help requests, emotional support
   Examples: "how to stay safe at night", "what should I do if I feel uncomfortable"

5. general - other conversation not directly related to safety
   Examples: "what's the weather", "tell me a joke", "what can you do"

Conversation:
%s

Current query: "%s"

Consider the full conversation before deciding. Respond with ONLY ONE WORD - the category name.`, transcript, query)
}

func emergencyPrompt(transcript, locationInfo, query string) string {
	return fmt.Sprintf(`%s

Conversation:
%s

Context: this is an EMERGENCY. The user needs immediate, personalized guidance.
Additional location information: %s

Question: %s

Respond as a caring friend who understands this is an emergency. Always include these numbers verbatim:
%s

Give specific, actionable steps for the exact situation, stay calm and reassuring, and combine immediate safety steps with emotional support.`,
		personaPrompt, transcript, locationInfo, query, emergencyNumbersBlock)
}

func safetyPrompt(transcript, knowledge, query string) string {
	return fmt.Sprintf(`%s

Conversation:
%s

Context: %s
Question: %s

Provide a clear, informative response in up to 100 words. Be caring and supportive.`,
		personaPrompt, transcript, knowledge, query)
}

func generalPrompt(transcript, knowledge, query string) string {
	return fmt.Sprintf(`%s

Conversation:
%s

Context: %s
Question: %s

Respond as her trusted friend who genuinely cares. Reference the conversation where it helps.`,
		personaPrompt, transcript, knowledge, query)
}

func toolSelectionPrompt(transcript string) string {
	return fmt.Sprintf(`You pick the right lookup for a women's safety assistant.
Available tools: "hospitals", "police", "emergency_services", "safe_places".

Read the conversation and return a single JSON object:
{"tool": "<one of the tools>", "location": "<the place to search near, as free text>"}

If no location was mentioned anywhere in the conversation, use an empty string for location.

Conversation:
%s`, transcript)
}
