package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAirplanesLiveURL is the public airplanes.live API base.
const DefaultAirplanesLiveURL = "https://api.airplanes.live/v2"

// AirplanesLiveSource polls the airplanes.live API around a fixed point and
// turns every returned aircraft into a Report.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	centerLat float64
	centerLon float64
	radiusNM  float64
	interval  time.Duration
	retry     RetryConfig
}

// NewAirplanesLiveSource creates a poller for the area within radiusNM of the given point.
// baseURL should be DefaultAirplanesLiveURL (or custom for testing).
// Radius is capped at the API maximum of 250 nautical miles.
func NewAirplanesLiveSource(baseURL string, centerLat, centerLon, radiusNM float64, interval time.Duration) *AirplanesLiveSource {
	if radiusNM > 250.0 {
		radiusNM = 250.0
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &AirplanesLiveSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		centerLat: centerLat,
		centerLon: centerLon,
		radiusNM:  radiusNM,
		interval:  interval,
		retry:     DefaultRetryConfig(),
	}
}

// Run polls until ctx is cancelled. Failed polls are retried with backoff,
// a poll that still fails after the retries is skipped until the next tick.
func (s *AirplanesLiveSource) Run(ctx context.Context, out chan<- Report) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		reports, err := RetryWithBackoffResult(ctx, s.retry, func() ([]Report, error) {
			return s.Poll(ctx)
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		for _, r := range reports {
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs a single /point request.
func (s *AirplanesLiveSource) Poll(ctx context.Context) ([]Report, error) {
	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", s.baseURL, s.centerLat, s.centerLon, s.radiusNM)
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(resp.Aircraft))
	for _, ac := range resp.Aircraft {
		if ac.Hex == "" {
			continue
		}
		reports = append(reports, ac.report(time.Now().UTC()))
	}
	return reports, nil
}

// Lookup fetches a single aircraft by its ICAO hex code using the /hex endpoint.
// It returns nil without error when the aircraft is not currently tracked.
func (s *AirplanesLiveSource) Lookup(ctx context.Context, icao string) (*Report, error) {
	resp, err := s.get(ctx, fmt.Sprintf("%s/hex/%s", s.baseURL, strings.ToLower(icao)))
	if err != nil {
		return nil, err
	}
	if len(resp.Aircraft) == 0 {
		return nil, nil
	}
	r := resp.Aircraft[0].report(time.Now().UTC())
	return &r, nil
}

// Close is a no-op, the API has no persistent connection.
func (s *AirplanesLiveSource) Close() error {
	return nil
}

func (s *AirplanesLiveSource) get(ctx context.Context, url string) (*airplanesLiveResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &apiResp, nil
}

// airplanesLiveResponse represents the JSON response from airplanes.live API.
type airplanesLiveResponse struct {
	Aircraft []airplanesLiveAircraft `json:"ac"`
	Total    int                     `json:"total"`
	Now      float64                 `json:"now"`
}

// airplanesLiveAircraft represents a single aircraft in the airplanes.live API response.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type airplanesLiveAircraft struct {
	Hex    string   `json:"hex"`
	Flight *string  `json:"flight"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`

	// Can be the string "ground" or a number
	AltBaro any `json:"alt_baro"`
	AltGeom any `json:"alt_geom"`

	Gs       *float64 `json:"gs"`
	Track    *float64 `json:"track"`
	BaroRate *float64 `json:"baro_rate"`

	// Seconds since the last message
	Seen *float64 `json:"seen"`
}

func (ac airplanesLiveAircraft) report(now time.Time) Report {
	r := Report{
		ICAO:      strings.ToUpper(ac.Hex),
		Timestamp: now,
	}

	if ac.Flight != nil {
		if cs := strings.TrimSpace(*ac.Flight); cs != "" {
			r.Callsign, r.HasCallsign = cs, true
		}
	}
	if ac.Lat != nil && ac.Lon != nil {
		r.Latitude, r.Longitude, r.HasPosition = *ac.Lat, *ac.Lon, true
	}

	// Prefer barometric, which is what transponders report in feet MSL
	if alt, ok := parseAltitude(ac.AltBaro); ok {
		r.Altitude, r.HasAltitude = alt, true
	} else if alt, ok := parseAltitude(ac.AltGeom); ok {
		r.Altitude, r.HasAltitude = alt, true
	}

	if ac.Gs != nil {
		r.Speed, r.HasSpeed = *ac.Gs, true
	}
	if ac.Track != nil {
		r.Track, r.HasTrack = *ac.Track, true
	}
	if ac.BaroRate != nil {
		r.VerticalRate, r.HasVerticalRate = *ac.BaroRate, true
	}
	if ac.Seen != nil {
		r.Timestamp = now.Add(-time.Duration(*ac.Seen * float64(time.Second)))
	}
	return r
}

// parseAltitude extracts altitude from a number or the string "ground".
func parseAltitude(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		if v == "ground" {
			return 0, true
		}
	}
	return 0, false
}

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit
	Remaining int       // X-Rate-Limit-Remaining
	Reset     time.Time // X-Rate-Limit-Reset
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is, or wraps, a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both delay-seconds and HTTP-date formats, returns 0 when absent.
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}
	return 0
}

func headerInt(headers http.Header, names ...string) (int64, bool) {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			return n, err == nil
		}
	}
	return 0, false
}

// extractRateLimitHeaders reads both the X-Rate-Limit-* and X-RateLimit-* spellings.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{Limit: -1, Remaining: -1}
	if n, ok := headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = int(n)
	}
	if n, ok := headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = int(n)
	}
	if n, ok := headerInt(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(n, 0)
	}
	return rlh
}
