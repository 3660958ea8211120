package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"guardia/internal/app"
	"guardia/internal/domain"
)

type Handlers struct {
	Router *app.Router
	Places *app.PlacesService
	KB     domain.KnowledgeStore
	Conv   domain.ConversationStore // nil disables session persistence

	HistoryLimit int // messages loaded per session, 0 means 20
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/hospitals/{location}", h.findHospitals)
	s.mux.Get("/v1/places/{location}", h.findPlaces)
	s.mux.Post("/v1/chat", h.chat)
	s.mux.Post("/v1/knowledge/search", h.searchKnowledge)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// parseRadius reads ?radius= in meters. Zero means the service default.
func parseRadius(r *http.Request) (int, bool) {
	rs := r.URL.Query().Get("radius")
	if rs == "" {
		return 0, true
	}
	v, err := strconv.Atoi(rs)
	if err != nil || v <= 0 || v > 50000 {
		return 0, false
	}
	return v, true
}

func parseCategory(s string) (domain.PlaceCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hospital", "hospitals":
		return domain.CategoryHospital, true
	case "police":
		return domain.CategoryPolice, true
	case "mall", "malls", "shopping_mall":
		return domain.CategoryMall, true
	case "lodging", "hotel", "hotels":
		return domain.CategoryLodging, true
	case "restaurant", "restaurants":
		return domain.CategoryRestaurant, true
	}
	return "", false
}

func (h *Handlers) findHospitals(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	if strings.TrimSpace(location) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid location", "location must not be empty")
		return
	}
	radius, ok := parseRadius(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be an integer between 1 and 50000 meters")
		return
	}

	result := h.Places.FindHospitals(r.Context(), location, radius)
	writeWithETag(w, r, result)
}

type placesResponse struct {
	QueryLocation string               `json:"query_location"`
	Category      string               `json:"category"`
	Results       []domain.PlaceRecord `json:"results"`
	TotalFound    int                  `json:"total_found"`
}

func (h *Handlers) findPlaces(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	if strings.TrimSpace(location) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid location", "location must not be empty")
		return
	}
	category, ok := parseCategory(r.URL.Query().Get("type"))
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid type", "type must be one of hospital, police, mall, lodging, restaurant")
		return
	}
	radius, ok := parseRadius(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be an integer between 1 and 50000 meters")
		return
	}

	records := h.Places.Find(r.Context(), location, category, radius)
	if records == nil {
		records = []domain.PlaceRecord{}
	}
	writeWithETag(w, r, placesResponse{
		QueryLocation: location,
		Category:      string(category),
		Results:       records,
		TotalFound:    len(records),
	})
}

type chatRequest struct {
	Message   string           `json:"message"`
	SessionID string           `json:"session_id"`
	History   []domain.Message `json:"conversation_history"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Intent    string `json:"intent"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid message", "message must not be empty")
		return
	}

	history := req.History
	// a stored session wins only when no inline history was sent
	if len(history) == 0 && req.SessionID != "" && h.Conv != nil {
		limit := h.HistoryLimit
		if limit <= 0 {
			limit = 20
		}
		stored, err := h.Conv.History(r.Context(), req.SessionID, limit)
		if err != nil {
			log.Warn().Err(err).Str("session", req.SessionID).Msg("history load failed")
		} else {
			history = stored
		}
	}

	answer, intent := h.Router.Respond(r.Context(), req.Message, history)

	if req.SessionID != "" && h.Conv != nil {
		// persistence is best effort, a store failure never fails the chat
		if err := h.Conv.AppendMessage(r.Context(), req.SessionID, domain.Message{Role: "user", Content: req.Message}); err != nil {
			log.Warn().Err(err).Str("session", req.SessionID).Msg("append user message failed")
		} else if err := h.Conv.AppendMessage(r.Context(), req.SessionID, domain.Message{Role: "assistant", Content: answer}); err != nil {
			log.Warn().Err(err).Str("session", req.SessionID).Msg("append assistant message failed")
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: answer, Intent: string(intent), SessionID: req.SessionID})
}

type knowledgeRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type knowledgeResponse struct {
	Results    []domain.Passage `json:"results"`
	TotalFound int              `json:"total_found"`
}

func (h *Handlers) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req knowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "query must not be empty")
		return
	}
	if req.K < 0 || req.K > 20 {
		writeProblem(w, http.StatusBadRequest, "Invalid k", "k must be between 0 and 20")
		return
	}

	passages, err := h.KB.SimilaritySearch(r.Context(), req.Query, req.K)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Retrieval failed", "knowledge base is unavailable")
		return
	}
	if passages == nil {
		passages = []domain.Passage{}
	}
	writeJSON(w, http.StatusOK, knowledgeResponse{Results: passages, TotalFound: len(passages)})
}
