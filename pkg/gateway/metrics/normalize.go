package metrics

import "strings"

// PathMode selects the normalization flavor. Both bound label
// cardinality; the choice is fixed per deployment.
type PathMode string

const (
	// PathModeOperations preserves recognized operation suffixes and
	// collapses numeric segments, e.g. /api/loan/123/validate becomes
	// /api/loan/*/validate.
	PathModeOperations PathMode = "operations"

	// PathModePrefix aggressively collapses everything under a service
	// to /api/{service}.
	PathModePrefix PathMode = "prefix"
)

// operationSuffixes are the path leaves kept verbatim in operations
// mode. Anything else under a known service becomes "other".
var operationSuffixes = map[string]struct{}{
	"validate":  {},
	"form":      {},
	"results":   {},
	"approve":   {},
	"documents": {},
	"settings":  {},
}

// fallbackLabel absorbs every path the normalizer does not recognize.
const fallbackLabel = "other"

// actuatorLabel absorbs all management endpoints.
const actuatorLabel = "/actuator"

// Normalizer maps request paths onto a bounded label set: known
// services come from the route table at startup and never change for
// the life of the process.
type Normalizer struct {
	mode     PathMode
	services map[string]struct{}
}

// NewNormalizer builds a Normalizer for the given service names. An
// unrecognized mode falls back to PathModeOperations.
func NewNormalizer(mode PathMode, services []string) *Normalizer {
	if mode != PathModePrefix {
		mode = PathModeOperations
	}
	set := make(map[string]struct{}, len(services))
	for _, s := range services {
		set[strings.ToLower(s)] = struct{}{}
	}
	return &Normalizer{mode: mode, services: set}
}

// Normalize maps a request path onto its metric label. A nil
// Normalizer maps everything to the fallback label.
func (n *Normalizer) Normalize(path string) string {
	if n == nil {
		return fallbackLabel
	}

	if path == "/actuator" || strings.HasPrefix(path, "/actuator/") {
		return actuatorLabel
	}

	segs := split(path)
	if len(segs) < 2 || segs[0] != "api" {
		return fallbackLabel
	}
	service := strings.ToLower(segs[1])
	if _, known := n.services[service]; !known {
		return fallbackLabel
	}

	base := "/api/" + service
	if n.mode == PathModePrefix || len(segs) == 2 {
		return base
	}

	// Operations mode: numeric segments collapse to "*", recognized
	// operation suffixes survive, anything else voids the whole
	// remainder into "other".
	rest := make([]string, 0, len(segs)-2)
	for _, seg := range segs[2:] {
		switch {
		case isNumeric(seg):
			rest = append(rest, "*")
		default:
			if _, ok := operationSuffixes[seg]; !ok {
				return base + "/" + fallbackLabel
			}
			rest = append(rest, seg)
		}
	}
	return base + "/" + strings.Join(rest, "/")
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
