package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"guardia/internal/adapters/observability"
	"guardia/internal/domain"
)

// Router classifies each query into one of five intents and dispatches to
// the matching response path. It holds no per-call state.
type Router struct {
	gen     domain.Generator
	kb      domain.KnowledgeStore
	toolkit *Toolkit
}

func NewRouter(gen domain.Generator, kb domain.KnowledgeStore, toolkit *Toolkit) *Router {
	return &Router{gen: gen, kb: kb, toolkit: toolkit}
}

// locationCues trigger a best-effort location lookup inside the emergency
// path. Fixed literal list; substring match, case-insensitive.
var locationCues = []string{"near", "location", "follow"}

// generalKnowledgeCues gate retrieval on the general path.
var generalKnowledgeCues = []string{"women", "safety", "secure", "protect"}

// Classify delegates to the generator and validates its output. Anything
// unrecognized, and any generation failure, maps to the safety default:
// fail-open toward supportive content, never toward silence and never
// toward a false emergency.
func (r *Router) Classify(ctx context.Context, query string, history []domain.Message) domain.Intent {
	transcript := buildContext(history, query)
	raw, err := r.gen.Generate(ctx, classificationPrompt(transcript, query))
	if err != nil {
		log.Warn().Err(err).Msg("intent classification failed, defaulting to safety")
		return domain.IntentSafety
	}
	label := strings.ToLower(strings.TrimSpace(raw))
	if !domain.ValidIntent(label) {
		log.Debug().Str("raw", raw).Msg("unrecognized intent label, defaulting to safety")
		return domain.IntentSafety
	}
	return domain.Intent(label)
}

// Respond classifies and routes in one step.
func (r *Router) Respond(ctx context.Context, query string, history []domain.Message) (string, domain.Intent) {
	intent := r.Classify(ctx, query, history)
	observability.ObserveIntent(string(intent))
	return r.Route(ctx, intent, query, history), intent
}

// Route produces the response text for an already-classified intent.
// Every path returns user-facing text; failures become polite fallbacks,
// with the emergency-number block appended for danger-adjacent intents.
func (r *Router) Route(ctx context.Context, intent domain.Intent, query string, history []domain.Message) string {
	transcript := buildContext(history, query)

	switch intent {
	case domain.IntentGreeting:
		return greetingReply

	case domain.IntentEmergency:
		return r.emergency(ctx, transcript, query)

	case domain.IntentLocation:
		out, err := r.toolkit.Answer(ctx, transcript)
		if err != nil {
			log.Warn().Err(err).Msg("location path failed")
			return apologyReply + "\n\nEmergency numbers:\n" + emergencyNumbersBlock
		}
		return out

	case domain.IntentSafety:
		return r.safety(ctx, transcript, query)

	default:
		return r.general(ctx, transcript, query)
	}
}

func (r *Router) emergency(ctx context.Context, transcript, query string) string {
	// best-effort location info when the query hints at one
	locationInfo := ""
	lower := strings.ToLower(query)
	for _, cue := range locationCues {
		if strings.Contains(lower, cue) {
			info, err := r.toolkit.Answer(ctx, transcript)
			if err != nil {
				log.Warn().Err(err).Msg("emergency location lookup failed")
			} else {
				locationInfo = info
			}
			break
		}
	}

	out, err := r.gen.Generate(ctx, emergencyPrompt(transcript, locationInfo, query))
	if err != nil {
		log.Warn().Err(err).Msg("emergency generation failed, using fixed fallback")
		if locationInfo != "" {
			return emergencyFallback + "\n\n" + locationInfo
		}
		return emergencyFallback
	}
	return out
}

func (r *Router) safety(ctx context.Context, transcript, query string) string {
	passages, err := r.kb.SimilaritySearch(ctx, query, 3)
	if err != nil {
		log.Warn().Err(err).Msg("knowledge retrieval failed")
	}
	if len(passages) == 0 {
		// never call the generator with empty context
		return noKnowledgeReply
	}

	out, err := r.gen.Generate(ctx, safetyPrompt(transcript, joinPassages(passages), query))
	if err != nil {
		log.Warn().Err(err).Msg("safety generation failed")
		return apologyReply
	}
	return out
}

func (r *Router) general(ctx context.Context, transcript, query string) string {
	knowledge := "No specific knowledge available. If off-topic, gently redirect to safety topics while referencing history."
	lower := strings.ToLower(query)
	for _, cue := range generalKnowledgeCues {
		if strings.Contains(lower, cue) {
			passages, err := r.kb.SimilaritySearch(ctx, query, 3)
			if err != nil {
				log.Warn().Err(err).Msg("knowledge retrieval failed")
			}
			if len(passages) > 0 {
				knowledge = joinPassages(passages)
			} else {
				knowledge = "No specific knowledge available. Provide general support."
			}
			break
		}
	}

	out, err := r.gen.Generate(ctx, generalPrompt(transcript, knowledge, query))
	if err != nil {
		log.Warn().Err(err).Msg("general generation failed")
		return apologyReply
	}
	return out
}

func joinPassages(ps []domain.Passage) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}
