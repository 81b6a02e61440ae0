// Package rules builds the validation rule set for the harvester.
//
// It translates the flag-level rule configuration into quality.Rules. Rules
// are validated fail-fast: a malformed range rule exits the process at
// startup.
package rules

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tidemark/harvest/cmd/harvester/config"
	"github.com/tidemark/harvest/pkg/quality"
)

// New builds quality.Rules from the configuration. Exits with status 1 on a
// malformed range rule.
func New(cfg *config.Config, logger *slog.Logger) quality.Rules {
	var r quality.Rules

	if cfg.RequiredFields != "" {
		for _, field := range strings.Split(cfg.RequiredFields, ",") {
			field = strings.TrimSpace(field)
			if field != "" {
				r.Required = append(r.Required, field)
			}
		}
	}

	if cfg.RangeRules != "" {
		r.Ranges = make(map[string]quality.RangeRule)
		for _, rule := range strings.Split(cfg.RangeRules, ",") {
			field, rr, err := parseRange(strings.TrimSpace(rule))
			if err != nil {
				logger.Error("invalid range rule", "rule", rule, "error", err)
				os.Exit(1)
			}
			r.Ranges[field] = rr
		}
	}

	if len(r.Required) > 0 || len(r.Ranges) > 0 {
		logger.Info("configured validation rules",
			"required", len(r.Required),
			"ranges", len(r.Ranges),
		)
	}

	return r
}

// parseRange parses a "field:min:max" rule.
func parseRange(s string) (string, quality.RangeRule, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", quality.RangeRule{}, &parseError{input: s}
	}

	min, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", quality.RangeRule{}, &parseError{input: s}
	}
	max, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", quality.RangeRule{}, &parseError{input: s}
	}
	if min > max {
		return "", quality.RangeRule{}, &parseError{input: s}
	}

	return parts[0], quality.RangeRule{Min: min, Max: max}, nil
}

type parseError struct {
	input string
}

func (e *parseError) Error() string {
	return "expected field:min:max with min <= max, got " + strconv.Quote(e.input)
}
