// internal/adapters/maps/client.go
package maps

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"guardia/internal/adapters/observability"
	"guardia/internal/domain"
)

// Client wraps the geocoding / nearby-search / place-details endpoints of
// a Google-Maps-style web service.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- wire types ----

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location *latLng `json:"location"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry *geometry `json:"geometry"`
	} `json:"results"`
}

type nearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name     string    `json:"name"`
		Vicinity string    `json:"vicinity"`
		Geometry *geometry `json:"geometry"`
		Rating   *float64  `json:"rating"`
		PlaceID  string    `json:"place_id"`
	} `json:"results"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result *struct {
		FormattedAddress     *string   `json:"formatted_address"`
		FormattedPhoneNumber *string   `json:"formatted_phone_number"`
		Rating               *float64  `json:"rating"`
		Geometry             *geometry `json:"geometry"`
	} `json:"result"`
}

// ---- Public API ----

func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	q := url.Values{}
	q.Set("address", address)
	var out geocodeResponse
	if err := c.get(ctx, "geocode", c.base+"/geocode/json?"+q.Encode(), &out); err != nil {
		return domain.Coordinate{}, err
	}
	if err := statusErr(out.Status); err != nil {
		return domain.Coordinate{}, err
	}
	for _, r := range out.Results {
		if r.Geometry != nil && r.Geometry.Location != nil {
			l := r.Geometry.Location
			return domain.Coordinate{Lat: l.Lat, Lng: l.Lng}, nil
		}
	}
	return domain.Coordinate{}, domain.ErrNotFound
}

func (c *Client) NearbySearch(ctx context.Context, origin domain.Coordinate, radiusM int, category domain.PlaceCategory) ([]domain.NearbyPlace, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("radius", strconv.Itoa(radiusM))
	q.Set("type", string(category))
	var out nearbyResponse
	if err := c.get(ctx, "nearbysearch", c.base+"/place/nearbysearch/json?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if err := statusErr(out.Status); err != nil {
		return nil, err
	}
	places := make([]domain.NearbyPlace, 0, len(out.Results))
	for _, r := range out.Results {
		p := domain.NearbyPlace{
			Name:     r.Name,
			Vicinity: r.Vicinity,
			Rating:   r.Rating,
			PlaceID:  r.PlaceID,
		}
		if r.Geometry != nil && r.Geometry.Location != nil {
			p.Location = &domain.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		}
		places = append(places, p)
	}
	return places, nil
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "name,formatted_address,formatted_phone_number,rating,geometry")
	var out detailsResponse
	if err := c.get(ctx, "details", c.base+"/place/details/json?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if err := statusErr(out.Status); err != nil {
		return nil, err
	}
	if out.Result == nil {
		return nil, domain.ErrNotFound
	}
	d := &domain.PlaceDetails{
		FormattedAddress:     out.Result.FormattedAddress,
		FormattedPhoneNumber: out.Result.FormattedPhoneNumber,
		Rating:               out.Result.Rating,
	}
	if g := out.Result.Geometry; g != nil && g.Location != nil {
		d.Location = &domain.Coordinate{Lat: g.Location.Lat, Lng: g.Location.Lng}
	}
	return d, nil
}

// ---- Internals ----

// statusErr maps the in-body status field of the places API to sentinel
// errors. The API reports application status at 200.
func statusErr(status string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return domain.ErrNotFound
	case "REQUEST_DENIED":
		return domain.ErrUnauthorized
	default:
		return fmt.Errorf("maps: status %s", status)
	}
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	status, err := c.doGet(ctx, rawURL, out)
	observability.ObserveExternal("maps", endpoint, status, time.Since(start))
	return err
}

func (c *Client) doGet(ctx context.Context, rawURL string, out any) (int, error) {
	if c.key != "" {
		rawURL += "&key=" + url.QueryEscape(c.key)
	}

	var lastStatus int
	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "guardia/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return resp.StatusCode, err

		case http.StatusNotFound:
			resp.Body.Close()
			return resp.StatusCode, domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return resp.StatusCode, domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return resp.StatusCode, domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return lastStatus, ctx.Err()
			}
			return lastStatus, lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return resp.StatusCode, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastStatus, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0                  // 0..1
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
