package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"guardia/internal/app"
	"guardia/internal/domain"
)

// ---- fakes ----

type fakeMaps struct {
	geocodeFn   func(address string) (domain.Coordinate, error)
	nearbyFn    func(origin domain.Coordinate, radiusM int, category domain.PlaceCategory) ([]domain.NearbyPlace, error)
	detailsFn   func(placeID string) (*domain.PlaceDetails, error)
	nearbyCalls int32
}

func (f *fakeMaps) Geocode(_ context.Context, address string) (domain.Coordinate, error) {
	if f.geocodeFn != nil {
		return f.geocodeFn(address)
	}
	return domain.Coordinate{Lat: 28.6, Lng: 77.2}, nil
}

func (f *fakeMaps) NearbySearch(_ context.Context, origin domain.Coordinate, radiusM int, category domain.PlaceCategory) ([]domain.NearbyPlace, error) {
	atomic.AddInt32(&f.nearbyCalls, 1)
	if f.nearbyFn != nil {
		return f.nearbyFn(origin, radiusM, category)
	}
	return nil, nil
}

func (f *fakeMaps) PlaceDetails(_ context.Context, placeID string) (*domain.PlaceDetails, error) {
	if f.detailsFn != nil {
		return f.detailsFn(placeID)
	}
	return nil, domain.ErrNotFound
}

type fakeCache struct{ store map[string][]byte }

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, _ := json.Marshal(v)
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func ptr[T any](v T) *T { return &v }

// placeAt returns a nearby place offset east of (28.6, 77.2) so farther
// indices are farther away.
func placeAt(name string, lngOffset float64, id string) domain.NearbyPlace {
	return domain.NearbyPlace{
		Name:     name,
		Vicinity: name + " Road",
		Location: &domain.Coordinate{Lat: 28.6, Lng: 77.2 + lngOffset},
		PlaceID:  id,
	}
}

// ---- PlacesFinder ----

func TestFind_GeocodeNotFoundYieldsEmpty(t *testing.T) {
	m := &fakeMaps{
		geocodeFn: func(string) (domain.Coordinate, error) { return domain.Coordinate{}, domain.ErrNotFound },
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	got := s.Find(context.Background(), "nonexistent-place-xyz", domain.CategoryHospital, 5000)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d records", len(got))
	}
	if atomic.LoadInt32(&m.nearbyCalls) != 0 {
		t.Fatalf("nearby search must not run without a coordinate")
	}
}

func TestFind_TransportFailureYieldsEmpty(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return nil, errors.New("connection reset")
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	if got := s.Find(context.Background(), "Delhi", domain.CategoryPolice, 5000); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestFind_SortsAscendingAndSkipsMissingGeometry(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return []domain.NearbyPlace{
				placeAt("Far", 0.03, "far"),
				{Name: "No Geometry", Vicinity: "x"}, // must be skipped
				placeAt("Near", 0.01, "near"),
				placeAt("Mid", 0.02, "mid"),
			}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	got := s.Find(context.Background(), "Delhi", domain.CategoryHospital, 5000)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Name != "Near" || got[1].Name != "Mid" || got[2].Name != "Far" {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].Name, got[1].Name, got[2].Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DistanceKm > got[i].DistanceKm {
			t.Fatalf("not sorted at %d: %v > %v", i, got[i-1].DistanceKm, got[i].DistanceKm)
		}
	}
}

func TestFind_DistancesRoundedToTwoDecimals(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return []domain.NearbyPlace{placeAt("A", 0.017, "a")}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	got := s.Find(context.Background(), "Delhi", domain.CategoryHospital, 5000)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	d := got[0].DistanceKm
	if math.Round(d*100)/100 != d {
		t.Fatalf("distance %v not rounded to 2 decimals", d)
	}
	if d <= 0 {
		t.Fatalf("distance must be positive, got %v", d)
	}
}

// ---- HospitalSearchPipeline ----

func TestFindHospitals_CapsAtTwentyNearest(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			// 25 hospitals, farthest first so the cap has to respect sorting
			out := make([]domain.NearbyPlace, 0, 25)
			for i := 25; i >= 1; i-- {
				out = append(out, placeAt(fmt.Sprintf("H%02d", i), float64(i)*0.001, fmt.Sprintf("id-%d", i)))
			}
			return out, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 4)

	res := s.FindHospitals(context.Background(), "Delhi", 5000)
	if res.TotalFound != 20 || len(res.Hospitals) != 20 {
		t.Fatalf("want exactly 20 hospitals, got total=%d len=%d", res.TotalFound, len(res.Hospitals))
	}
	if res.Hospitals[0].Name != "H01" {
		t.Fatalf("nearest first, got %s", res.Hospitals[0].Name)
	}
	if res.Hospitals[19].Name != "H20" {
		t.Fatalf("cap must keep the 20 nearest, got %s last", res.Hospitals[19].Name)
	}
}

func TestFindHospitals_ResultShape(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return []domain.NearbyPlace{placeAt("City Hospital", 0.01, "p-1")}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	res := s.FindHospitals(context.Background(), "  Connaught Place ", 7500)
	if res.QueryLocation != "  Connaught Place " {
		t.Fatalf("query_location must echo input verbatim, got %q", res.QueryLocation)
	}
	if res.SearchRadiusKm != 7.5 {
		t.Fatalf("search_radius_km = %v, want 7.5", res.SearchRadiusKm)
	}
	if res.TotalFound != len(res.Hospitals) {
		t.Fatalf("total_found %d != len %d", res.TotalFound, len(res.Hospitals))
	}
}

func TestFindHospitals_EmptyWhenGeocodeFails(t *testing.T) {
	m := &fakeMaps{
		geocodeFn: func(string) (domain.Coordinate, error) { return domain.Coordinate{}, domain.ErrNotFound },
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 2)

	res := s.FindHospitals(context.Background(), "nowhere", 5000)
	if res.TotalFound != 0 || len(res.Hospitals) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.SearchRadiusKm != 5.0 {
		t.Fatalf("search_radius_km = %v, want 5.0", res.SearchRadiusKm)
	}
}

func TestFindHospitals_EnrichmentIsBestEffortPerRecord(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			out := make([]domain.NearbyPlace, 0, 5)
			for i := 1; i <= 5; i++ {
				out = append(out, placeAt(fmt.Sprintf("H%d", i), float64(i)*0.001, fmt.Sprintf("id-%d", i)))
			}
			return out, nil
		},
		detailsFn: func(placeID string) (*domain.PlaceDetails, error) {
			if placeID == "id-3" {
				return nil, errors.New("boom")
			}
			return &domain.PlaceDetails{
				FormattedPhoneNumber: ptr("011 555 " + placeID),
				FormattedAddress:     ptr("Full address for " + placeID),
			}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 0, 3)

	res := s.FindHospitals(context.Background(), "Delhi", 5000)
	if res.TotalFound != 5 {
		t.Fatalf("one failed enrichment must not drop records, got %d", res.TotalFound)
	}
	for _, h := range res.Hospitals {
		if h.PlaceID == "id-3" {
			if h.ContactNumber != nil {
				t.Fatalf("failed record should have no contact number")
			}
			if h.Address != "H3 Road" {
				t.Fatalf("failed record must keep its original address, got %q", h.Address)
			}
			continue
		}
		if h.ContactNumber == nil || *h.ContactNumber != "011 555 "+h.PlaceID {
			t.Fatalf("record %s not enriched: %+v", h.PlaceID, h)
		}
		if h.Address != "Full address for "+h.PlaceID {
			t.Fatalf("record %s address not refined: %q", h.PlaceID, h.Address)
		}
	}
}

func TestFindHospitals_SecondCallServedFromCache(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return []domain.NearbyPlace{placeAt("City Hospital", 0.01, "p-1")}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, 10*time.Minute, 0, 2)

	first := s.FindHospitals(context.Background(), "Delhi", 5000)
	if first.TotalFound != 1 {
		t.Fatalf("seed call failed: %+v", first)
	}
	calls := atomic.LoadInt32(&m.nearbyCalls)

	second := s.FindHospitals(context.Background(), "Delhi", 5000)
	if second.TotalFound != 1 || second.Hospitals[0].Name != "City Hospital" {
		t.Fatalf("unexpected cached result: %+v", second)
	}
	if atomic.LoadInt32(&m.nearbyCalls) != calls {
		t.Fatalf("second call should not hit the places service")
	}
}

func TestFindHospitals_CacheHitEchoesCallerLocation(t *testing.T) {
	m := &fakeMaps{
		nearbyFn: func(domain.Coordinate, int, domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			return []domain.NearbyPlace{placeAt("City Hospital", 0.01, "p-1")}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, 10*time.Minute, 0, 2)

	if seed := s.FindHospitals(context.Background(), "Delhi", 5000); seed.QueryLocation != "Delhi" {
		t.Fatalf("seed echo = %q", seed.QueryLocation)
	}
	calls := atomic.LoadInt32(&m.nearbyCalls)

	// case/whitespace variants share the warm entry but keep their own echo
	variant := s.FindHospitals(context.Background(), "DELHI  ", 5000)
	if variant.QueryLocation != "DELHI  " {
		t.Fatalf("query_location = %q, want %q (verbatim echo)", variant.QueryLocation, "DELHI  ")
	}
	if variant.TotalFound != 1 {
		t.Fatalf("variant lost the cached hospitals: %+v", variant)
	}
	if atomic.LoadInt32(&m.nearbyCalls) != calls {
		t.Fatalf("variant spelling should still be a cache hit")
	}
}

func TestFindHospitals_ConfiguredDefaultRadius(t *testing.T) {
	var gotRadius int
	m := &fakeMaps{
		nearbyFn: func(_ domain.Coordinate, radiusM int, _ domain.PlaceCategory) ([]domain.NearbyPlace, error) {
			gotRadius = radiusM
			return []domain.NearbyPlace{placeAt("City Hospital", 0.01, "p-1")}, nil
		},
	}
	s := app.NewPlacesService(m, &fakeCache{}, time.Minute, 8000, 2)

	res := s.FindHospitals(context.Background(), "Delhi", 0)
	if gotRadius != 8000 {
		t.Fatalf("search radius = %d, want configured 8000", gotRadius)
	}
	if res.SearchRadiusKm != 8.0 {
		t.Fatalf("search_radius_km = %g, want 8", res.SearchRadiusKm)
	}
}
