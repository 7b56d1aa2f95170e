// Package openmeteo derives monthly rainfall profiles from the Open-Meteo
// historical weather archive by aggregating daily precipitation over the
// last few complete calendar years.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

func init() {
	rainfall.Register(NewProvider())
}

// DefaultBaseURL is the public Open-Meteo archive endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// defaultYears is how many complete calendar years are averaged.
const defaultYears = 3

// Provider fetches daily precipitation sums and folds them into monthly
// averages across the sampled years.
type Provider struct {
	BaseURL string
	Client  *http.Client
	Years   int

	// now is overridable for tests.
	now func() time.Time
}

// NewProvider creates a provider against the public archive API. The base
// URL can be overridden with RAINFORGE_OPENMETEO_BASE_URL.
func NewProvider() *Provider {
	base := os.Getenv("RAINFORGE_OPENMETEO_BASE_URL")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Provider{
		BaseURL: base,
		Client:  rainfall.DefaultHTTPClient(),
		Years:   defaultYears,
		now:     time.Now,
	}
}

func (p *Provider) Key() string {
	return "openmeteo"
}

func (p *Provider) Name() string {
	return "Open-Meteo historical weather archive"
}

func (p *Provider) SourceURL() string {
	return "https://open-meteo.com/en/docs/historical-weather-api"
}

// Normals fetches and aggregates daily precipitation for the location.
func (p *Provider) Normals(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
	years := p.Years
	if years <= 0 {
		years = defaultYears
	}
	nowFn := p.now
	if nowFn == nil {
		nowFn = time.Now
	}

	endYear := nowFn().UTC().Year() - 1
	start := fmt.Sprintf("%04d-01-01", endYear-years+1)
	end := fmt.Sprintf("%04d-12-31", endYear)

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', 4, 64))
	q.Set("start_date", start)
	q.Set("end_date", end)
	q.Set("daily", "precipitation_sum")
	q.Set("timezone", "UTC")

	reqURL := p.BaseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = rainfall.DefaultHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	monthly, err := parseArchive(body, years)
	if err != nil {
		return nil, err
	}

	return &rainfall.Profile{
		MonthlyMM: monthly,
		AnnualMM:  rainfall.AnnualTotal(monthly),
		Source:    fmt.Sprintf("Open-Meteo archive %s to %s", start, end),
		FetchedAt: nowFn().UTC(),
	}, nil
}

type archiveResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// parseArchive folds daily precipitation sums into per-month totals averaged
// over the sampled years. Null daily values (sensor gaps) are skipped.
func parseArchive(body []byte, years int) ([12]float64, error) {
	var monthly [12]float64

	var ar archiveResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return monthly, fmt.Errorf("decode archive response: %w", rainfall.ErrParseFailed)
	}
	if len(ar.Daily.Time) == 0 {
		return monthly, fmt.Errorf("archive response has no daily data: %w", rainfall.ErrParseFailed)
	}
	if len(ar.Daily.Time) != len(ar.Daily.PrecipitationSum) {
		return monthly, fmt.Errorf("archive response has %d dates but %d precipitation values: %w",
			len(ar.Daily.Time), len(ar.Daily.PrecipitationSum), rainfall.ErrParseFailed)
	}

	for i, day := range ar.Daily.Time {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			return monthly, fmt.Errorf("bad date %q in archive response: %w", day, rainfall.ErrParseFailed)
		}
		v := ar.Daily.PrecipitationSum[i]
		if v == nil || *v < 0 {
			continue
		}
		monthly[t.Month()-1] += *v
	}

	if years > 1 {
		for i := range monthly {
			monthly[i] /= float64(years)
		}
	}
	return monthly, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
