package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Location is a named coordinate pair a WeatherSource reads weather for.
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// WeatherSource fetches current weather readings from an Open-Meteo compatible
// API, one record per configured location. Records have the form:
//
//	{"city": string, "temperature": float64, "humidity": float64,
//	 "wind_speed": float64, "timestamp": RFC3339 string, "source_id": <id>}
type WeatherSource struct {
	// SourceID identifies this source in records and stats. Required.
	SourceID string
	// BaseURL is the API base, e.g. https://api.open-meteo.com
	BaseURL string
	// Locations to read. At least one is required.
	Locations []Location
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (w *WeatherSource) Name() string { return w.SourceID }

// Fetch implements Source. It queries the current-weather endpoint once per
// location, sequentially, and fails the whole batch on the first error so the
// engine counts the invocation as a single failed request.
func (w *WeatherSource) Fetch(ctx context.Context) (*Batch, error) {
	if w.SourceID == "" || w.BaseURL == "" {
		return &Batch{}, errors.New("weather source: SourceID and BaseURL are required")
	}
	if len(w.Locations) == 0 {
		return &Batch{}, errors.New("weather source: at least one location is required")
	}

	cli := w.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	records := make([]Record, 0, len(w.Locations))
	for _, loc := range w.Locations {
		rec, err := w.fetchLocation(ctx, cli, loc)
		if err != nil {
			return &Batch{}, fmt.Errorf("%s: %s: %w", w.SourceID, loc.Name, err)
		}
		records = append(records, rec)
	}

	return &Batch{Records: records}, nil
}

func (w *WeatherSource) fetchLocation(ctx context.Context, cli *http.Client, loc Location) (Record, error) {
	u, err := url.Parse(w.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	u.Path = "/v1/forecast"

	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var wr weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	ts := wr.Current.Time
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		// Open-Meteo omits the zone suffix on its ISO timestamps.
		if t2, err2 := time.Parse("2006-01-02T15:04", ts); err2 == nil {
			ts = t2.UTC().Format(time.RFC3339)
		} else {
			ts = time.Now().UTC().Format(time.RFC3339)
		}
	}

	return Record{
		"city":          loc.Name,
		"temperature":   wr.Current.Temperature,
		"humidity":      wr.Current.Humidity,
		"wind_speed":    wr.Current.WindSpeed,
		FieldTimestamp: ts,
		FieldSourceID:  w.SourceID,
	}, nil
}

type weatherResponse struct {
	Current weatherCurrent `json:"current"`
}

type weatherCurrent struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature_2m"`
	Humidity    float64 `json:"relative_humidity_2m"`
	WindSpeed   float64 `json:"wind_speed_10m"`
}
