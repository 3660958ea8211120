package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound: geocode produced no usable result, or a lookup missed.
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// PlacesClient talks to the external geocoding/places service.
type PlacesClient interface {
	// Geocode resolves free text to a coordinate. Zero results map to
	// ErrNotFound.
	Geocode(ctx context.Context, address string) (Coordinate, error)
	// NearbySearch lists places of the given category around origin.
	NearbySearch(ctx context.Context, origin Coordinate, radiusM int, category PlaceCategory) ([]NearbyPlace, error)
	// PlaceDetails fetches enrichment fields for one place.
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// Generator is the opaque text-generation call: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// KnowledgeStore retrieves ranked safety passages for a query.
type KnowledgeStore interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ConversationStore persists chat sessions.
type ConversationStore interface {
	AppendMessage(ctx context.Context, sessionID string, m Message) error
	// History returns up to limit most recent messages, oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
}
