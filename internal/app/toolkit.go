package app

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"guardia/internal/domain"
)

// Toolkit is the location path: one opaque generation call picks a lookup
// tool and a location from the conversation, then the matching renderer
// formats live places data. Tool selection is never modeled as a state
// machine; the choice belongs entirely to the generator.
type Toolkit struct {
	places *PlacesService
	gen    domain.Generator
}

func NewToolkit(places *PlacesService, gen domain.Generator) *Toolkit {
	return &Toolkit{places: places, gen: gen}
}

type toolChoice struct {
	Tool     string `json:"tool"`
	Location string `json:"location"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// Answer resolves the conversation to a tool invocation and returns its
// rendered output. It degrades to a location ask when no location can be
// determined, and returns an error only when generation itself failed.
func (t *Toolkit) Answer(ctx context.Context, transcript string) (string, error) {
	raw, err := t.gen.Generate(ctx, toolSelectionPrompt(transcript))
	if err != nil {
		return "", err
	}

	choice := parseToolChoice(raw)
	if choice.Location == "" {
		return shareLocationReply, nil
	}

	switch choice.Tool {
	case "police":
		return t.PoliceStationsText(ctx, choice.Location), nil
	case "emergency_services":
		return t.EmergencyServicesText(ctx, choice.Location), nil
	case "safe_places":
		return t.SafePlacesText(ctx, choice.Location), nil
	default:
		// hospitals is also the fallback for unrecognized tool names
		return t.HospitalsText(ctx, choice.Location), nil
	}
}

// parseToolChoice is deliberately lenient: it grabs the first JSON object
// in the output and lower-cases the tool name.
func parseToolChoice(raw string) toolChoice {
	var c toolChoice
	if m := jsonObjectRe.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &c); err != nil {
			log.Debug().Str("raw", raw).Msg("tool choice: unparseable JSON")
		}
	}
	c.Tool = strings.ToLower(strings.TrimSpace(c.Tool))
	c.Location = strings.TrimSpace(c.Location)
	return c
}

// HospitalsText renders the structured hospital pipeline for humans.
func (t *Toolkit) HospitalsText(ctx context.Context, location string) string {
	res := t.places.FindHospitals(ctx, location, 0)
	if res.TotalFound == 0 {
		return fmt.Sprintf("I'm having trouble finding hospitals near %s right now. Please double-check the location name and try again, or call 102 (Ambulance).", location)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hospitals near %s:\n", res.QueryLocation)
	fmt.Fprintf(&b, "Found %d hospitals within %g km.\n\n", res.TotalFound, res.SearchRadiusKm)
	for i, h := range res.Hospitals {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h.Name)
		fmt.Fprintf(&b, "   Address: %s\n", h.Address)
		fmt.Fprintf(&b, "   Distance: %g km away\n", h.DistanceKm)
		if h.ContactNumber != nil {
			fmt.Fprintf(&b, "   Contact: %s\n", *h.ContactNumber)
		} else {
			b.WriteString("   Contact: Not available\n")
		}
		if h.Rating != nil {
			fmt.Fprintf(&b, "   Rating: %g/5\n", *h.Rating)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Emergency number: 102 (Ambulance)\n")
	b.WriteString("Tip: call ahead to check availability and services.")
	return b.String()
}

func (t *Toolkit) PoliceStationsText(ctx context.Context, location string) string {
	stations := t.places.Find(ctx, location, domain.CategoryPolice, 0)
	if len(stations) == 0 {
		return fmt.Sprintf("I'm having trouble finding police stations near %s right now. Please double-check the location name and try again, or call emergency: 100 (Police).", location)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Police stations near %s:\n\n", location)
	for i, s := range stations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Name)
		fmt.Fprintf(&b, "   Address: %s\n", s.Address)
		fmt.Fprintf(&b, "   Distance: %g km\n\n", s.DistanceKm)
	}
	b.WriteString("Emergency number: 100 (Police)\n")
	b.WriteString("Tip: save these numbers in your phone for quick access.")
	return b.String()
}

func (t *Toolkit) EmergencyServicesText(ctx context.Context, location string) string {
	hospitals := head(t.places.Find(ctx, location, domain.CategoryHospital, 0), 3)
	police := head(t.places.Find(ctx, location, domain.CategoryPolice, 0), 3)

	var b strings.Builder
	fmt.Fprintf(&b, "Emergency services near %s:\n\n", location)
	if len(hospitals) > 0 {
		b.WriteString("Nearest hospitals:\n")
		for _, h := range hospitals {
			fmt.Fprintf(&b, "- %s (%g km), %s\n", h.Name, h.DistanceKm, h.Address)
		}
		b.WriteByte('\n')
	}
	if len(police) > 0 {
		b.WriteString("Nearest police stations:\n")
		for _, p := range police {
			fmt.Fprintf(&b, "- %s (%g km), %s\n", p.Name, p.DistanceKm, p.Address)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Emergency numbers:\n")
	b.WriteString("- Police: 100\n")
	b.WriteString("- Ambulance: 102\n")
	b.WriteString("- Fire: 101\n")
	b.WriteString("- Women Helpline: 1091\n")
	b.WriteString("- All Emergency: 112\n\n")
	b.WriteString("Safety tip: share your location with trusted contacts in an emergency.")
	return b.String()
}

func (t *Toolkit) SafePlacesText(ctx context.Context, location string) string {
	malls := head(t.places.Find(ctx, location, domain.CategoryMall, 0), 3)
	hotels := head(t.places.Find(ctx, location, domain.CategoryLodging, 0), 3)
	restaurants := head(t.places.Find(ctx, location, domain.CategoryRestaurant, 0), 3)

	var b strings.Builder
	fmt.Fprintf(&b, "Safe places near %s:\n\n", location)
	writeGroup := func(title string, recs []domain.PlaceRecord) {
		if len(recs) == 0 {
			return
		}
		b.WriteString(title + "\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "- %s (%g km)\n", r.Name, r.DistanceKm)
		}
		b.WriteByte('\n')
	}
	writeGroup("Shopping malls (well-lit, security):", malls)
	writeGroup("Hotels (24/7 reception):", hotels)
	writeGroup("Restaurants (public places):", restaurants)

	b.WriteString("Safety tips:\n")
	b.WriteString("- Choose well-lit, crowded places.\n")
	b.WriteString("- Look for places with security cameras.\n")
	b.WriteString("- Avoid isolated areas, especially at night.\n")
	b.WriteString("- Trust your instincts. If something feels wrong, leave.")
	return b.String()
}

func head(recs []domain.PlaceRecord, n int) []domain.PlaceRecord {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}
