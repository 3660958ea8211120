package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"guardia/internal/domain"
)

const (
	defaultRadiusM = 5000
	// hospitalCap bounds per-search detail lookups and keeps the response
	// payload predictable regardless of area density.
	hospitalCap = 20
)

// PlacesService turns a free-text location into sorted nearby places and
// runs the structured hospital pipeline. Every failure downstream of the
// caller degrades to an empty result; this service never returns errors.
type PlacesService struct {
	maps          domain.PlacesClient
	cache         domain.Cache
	cacheTTL      time.Duration
	defaultRadius int
	enrichWorkers int
}

func NewPlacesService(maps domain.PlacesClient, cache domain.Cache, ttl time.Duration, defaultRadius, enrichWorkers int) *PlacesService {
	if defaultRadius <= 0 {
		defaultRadius = defaultRadiusM
	}
	if enrichWorkers <= 0 {
		enrichWorkers = 4
	}
	return &PlacesService{maps: maps, cache: cache, cacheTTL: ttl, defaultRadius: defaultRadius, enrichWorkers: enrichWorkers}
}

// resolve geocodes location with a read-through cache. Only successful
// resolutions are cached; misses stay cheap to retry.
func (s *PlacesService) resolve(ctx context.Context, location string) (domain.Coordinate, bool) {
	key := "geo:" + strings.ToLower(strings.TrimSpace(location))
	var origin domain.Coordinate
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &origin); ok {
			return origin, true
		}
	}
	origin, err := s.maps.Geocode(ctx, location)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Str("location", location).Msg("geocode: no results")
		} else {
			log.Warn().Str("location", location).Err(err).Msg("geocode failed")
		}
		return domain.Coordinate{}, false
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, origin, int(s.cacheTTL.Seconds()))
	}
	return origin, true
}

// Find lists places of category around location, nearest first. The result
// carries distances rounded to 2 decimals, computed from the one resolved
// origin. No truncation happens here; slicing is caller policy.
func (s *PlacesService) Find(ctx context.Context, location string, category domain.PlaceCategory, radiusM int) []domain.PlaceRecord {
	if radiusM <= 0 {
		radiusM = s.defaultRadius
	}
	origin, ok := s.resolve(ctx, location)
	if !ok {
		return []domain.PlaceRecord{}
	}

	raw, err := s.maps.NearbySearch(ctx, origin, radiusM, category)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.PlaceRecord{}
		}
		log.Warn().Str("location", location).Str("category", string(category)).Err(err).Msg("nearby search failed")
		return []domain.PlaceRecord{}
	}

	records := make([]domain.PlaceRecord, 0, len(raw))
	for _, p := range raw {
		if p.Location == nil {
			// row without geometry cannot be ranked; drop it, keep the rest
			continue
		}
		address := p.Vicinity
		if address == "" {
			address = "Address not available"
		}
		loc := *p.Location
		records = append(records, domain.PlaceRecord{
			Name:       p.Name,
			Address:    address,
			DistanceKm: round2(domain.DistanceKm(origin, loc)),
			Rating:     p.Rating,
			Location:   &loc,
			PlaceID:    p.PlaceID,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DistanceKm < records[j].DistanceKm
	})
	return records
}

// FindHospitals runs the structured hospital pipeline: find, cap at the 20
// nearest, enrich each retained record independently, shape the bounded
// result. QueryLocation echoes the input verbatim.
func (s *PlacesService) FindHospitals(ctx context.Context, location string, radiusM int) domain.HospitalSearchResult {
	if radiusM <= 0 {
		radiusM = s.defaultRadius
	}

	key := fmt.Sprintf("hospitals:%s:%d", strings.ToLower(strings.TrimSpace(location)), radiusM)
	if s.cache != nil {
		var cached domain.HospitalSearchResult
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			// the key is normalized but the echo is not; a variant spelling
			// hitting the warm entry must still see its own input back
			cached.QueryLocation = location
			return cached
		}
	}

	hospitals := s.Find(ctx, location, domain.CategoryHospital, radiusM)
	if len(hospitals) > hospitalCap {
		hospitals = hospitals[:hospitalCap]
	}
	s.enrich(ctx, hospitals)

	result := domain.HospitalSearchResult{
		QueryLocation:  location,
		Hospitals:      hospitals,
		TotalFound:     len(hospitals),
		SearchRadiusKm: float64(radiusM) / 1000,
	}
	if s.cache != nil && result.TotalFound > 0 {
		_ = s.cache.Set(ctx, key, result, int(s.cacheTTL.Seconds()))
	}
	return result
}

// enrich fills contact numbers and formatted addresses in place. Calls are
// independent per record and bounded by a semaphore; one failure never
// touches the other records, and a failed record keeps its prior fields.
func (s *PlacesService) enrich(ctx context.Context, records []domain.PlaceRecord) {
	sem := semaphore.NewWeighted(int64(s.enrichWorkers))
	var wg sync.WaitGroup

	for i := range records {
		if records[i].PlaceID == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return // context gone; remaining records stay unenriched
		}
		wg.Add(1)
		go func(rec *domain.PlaceRecord) {
			defer wg.Done()
			defer sem.Release(1)

			details, err := s.maps.PlaceDetails(ctx, rec.PlaceID)
			if err != nil || details == nil {
				log.Debug().Str("place_id", rec.PlaceID).Err(err).Msg("place details unavailable")
				return
			}
			if details.FormattedPhoneNumber != nil {
				rec.ContactNumber = details.FormattedPhoneNumber
			}
			if details.FormattedAddress != nil {
				rec.Address = *details.FormattedAddress
			}
		}(&records[i])
	}
	wg.Wait()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
