// Package sources builds the configured data sources for the harvester.
//
// It acts as a factory translating the flag-level source configuration into
// pkg/sources implementations. Sources are validated fail-fast: a malformed
// field mapping or location list exits the process at startup rather than
// failing mid-run.
package sources

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tidemark/harvest/cmd/harvester/config"
	"github.com/tidemark/harvest/pkg/sources"
)

// New builds the source list from the configuration. At least one source is
// guaranteed by config validation. Exits with status 1 on malformed source
// configuration.
func New(cfg *config.Config, logger *slog.Logger) []sources.Source {
	var srcs []sources.Source

	if cfg.APIEndpoint != "" {
		fields, err := parseFields(cfg.APIFields)
		if err != nil {
			logger.Error("invalid api field mapping", "mapping", cfg.APIFields, "error", err)
			os.Exit(1)
		}
		logger.Info("configuring http api source", "endpoint", cfg.APIEndpoint)
		srcs = append(srcs, &sources.APISource{
			SourceID: "api",
			Endpoint: cfg.APIEndpoint,
			APIKey:   cfg.APIKey,
			ItemsKey: cfg.APIItemsKey,
			Fields:   fields,
		})
	}

	if cfg.WeatherLocations != "" {
		locations, err := parseLocations(cfg.WeatherLocations)
		if err != nil {
			logger.Error("invalid weather locations", "locations", cfg.WeatherLocations, "error", err)
			os.Exit(1)
		}
		logger.Info("configuring weather source", "url", cfg.WeatherURL, "locations", len(locations))
		srcs = append(srcs, &sources.WeatherSource{
			SourceID:  "weather",
			BaseURL:   cfg.WeatherURL,
			Locations: locations,
		})
	}

	return srcs
}

// parseFields parses "record=payload,record=payload" field mappings into the
// wire-to-record map APISource expects. An empty string yields a nil map,
// which keeps all scalar payload fields.
func parseFields(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		dst, src, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || dst == "" || src == "" {
			return nil, &parseError{input: pair, want: "record=payload"}
		}
		fields[src] = dst
	}
	return fields, nil
}

// parseLocations parses "name:lat:lon" triples separated by commas.
func parseLocations(s string) ([]sources.Location, error) {
	var locations []sources.Location
	for _, triple := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(triple), ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, &parseError{input: triple, want: "name:lat:lon"}
		}

		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, &parseError{input: triple, want: "name:lat:lon"}
		}
		lon, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, &parseError{input: triple, want: "name:lat:lon"}
		}

		locations = append(locations, sources.Location{Name: parts[0], Lat: lat, Lon: lon})
	}
	return locations, nil
}

type parseError struct {
	input string
	want  string
}

func (e *parseError) Error() string {
	return "expected " + e.want + ", got " + strconv.Quote(e.input)
}
