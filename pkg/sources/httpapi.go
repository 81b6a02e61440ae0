// Package sources provides Harvest data source connectors that retrieve raw
// records from external systems and normalize them into a common Batch
// structure.
//
// Each source implements the Source interface and can be plugged into the
// Harvest collection engine. Typical sources include:
//   - APISource     - fetches item lists from bearer-token JSON REST APIs
//   - WeatherSource - fetches current weather readings per configured location
//
// Sources are intentionally lightweight. They focus on pulling raw data,
// shaping it into [Batch] objects, and leaving all validation and quality
// scoring to Harvest's upper layers.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APISource fetches a list of items from a JSON REST API and maps each item
// to one Record. It issues a single GET per Fetch and returns a *Batch with
// rows of the form:
//
//	{"<mapped fields>": ..., "timestamp": RFC3339 string, "source_id": <id>}
//
// Responses may be a top-level JSON array or an object holding the array
// under ItemsKey (e.g. {"items": [...]}).
type APISource struct {
	// SourceID identifies this source in records and stats. Required.
	SourceID string
	// Endpoint is the full request URL, e.g. https://api.example.com/v1/cards
	Endpoint string
	// APIKey, when set, is sent as a Bearer token.
	APIKey string
	// ItemsKey locates the item array inside an object response.
	// Ignored when the response is a top-level array. Defaults to "items".
	ItemsKey string
	// Fields maps wire field names to record field names. When empty, every
	// scalar field is kept under its wire name.
	Fields map[string]string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (s *APISource) Name() string { return s.SourceID }

// Fetch implements Source. It calls the endpoint once, extracts the item
// array, and maps each item into a Record stamped with the collection
// timestamp and source id. It respects the provided context for cancellation
// and deadlines.
func (s *APISource) Fetch(ctx context.Context) (*Batch, error) {
	if s.SourceID == "" || s.Endpoint == "" {
		return &Batch{}, errors.New("api source: SourceID and Endpoint are required")
	}
	if _, err := url.Parse(s.Endpoint); err != nil {
		return &Batch{}, fmt.Errorf("invalid Endpoint: %w", err)
	}

	cli := s.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return &Batch{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "harvest/1.0")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return &Batch{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Batch{}, fmt.Errorf("%s: status %d (check API key)", s.SourceID, resp.StatusCode)
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		return &Batch{}, fmt.Errorf("%s: rate limited (retry-after %q)", s.SourceID, retryAfter)
	default:
		return &Batch{}, fmt.Errorf("%s: status %d", s.SourceID, resp.StatusCode)
	}

	items, err := decodeItems(resp.Body, s.ItemsKey)
	if err != nil {
		return &Batch{}, fmt.Errorf("decode %s response: %w", s.SourceID, err)
	}

	collectedAt := time.Now().UTC().Format(time.RFC3339)
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec := s.mapItem(item)
		rec[FieldTimestamp] = collectedAt
		rec[FieldSourceID] = s.SourceID
		records = append(records, rec)
	}

	return &Batch{Records: records}, nil
}

func (s *APISource) mapItem(item map[string]any) Record {
	rec := Record{}
	if len(s.Fields) == 0 {
		for k, v := range item {
			if isScalar(v) {
				rec[k] = v
			}
		}
		return rec
	}
	for wire, name := range s.Fields {
		if v, ok := item[wire]; ok && isScalar(v) {
			rec[name] = v
		}
	}
	return rec
}

func decodeItems(body io.Reader, itemsKey string) ([]map[string]any, error) {
	var raw any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, err
	}

	var arr []any
	switch v := raw.(type) {
	case []any:
		arr = v
	case map[string]any:
		key := itemsKey
		if key == "" {
			key = "items"
		}
		inner, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("response has no %q array", key)
		}
		arr, ok = inner.([]any)
		if !ok {
			return nil, fmt.Errorf("%q is not an array", key)
		}
	default:
		return nil, fmt.Errorf("unexpected response type %T", raw)
	}

	items := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// isScalar reports whether v is a value a Record may carry: strings, numbers,
// and booleans from decoded JSON. Nested objects and arrays are dropped.
func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool, json.Number, int, int64:
		return true
	default:
		return false
	}
}
