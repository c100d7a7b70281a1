package universe

import (
	"sort"
	"strings"
)

// Config is the instrument exclusion policy. The effective rejection
// set is ExcludePrefixes plus the expansion of ExcludeMarkets; the
// union is recomputed on every Admit call so read sites can never skip
// the market expansion.
type Config struct {
	ExcludePrefixes []string
	ExcludeMarkets  []string
}

// marketPrefixes is the fixed market-segment to code-prefix table.
// A configuration naming only markets must filter identically to one
// naming the equivalent prefixes directly.
var marketPrefixes = map[string][]string{
	"STAR": {"688", "689"},
	"GEM":  {"300", "301"},
	"BSE":  {"43", "83", "87", "92"},
}

// KnownMarket reports whether the market segment name is in the table
func KnownMarket(name string) bool {
	_, ok := marketPrefixes[strings.ToUpper(strings.TrimSpace(name))]
	return ok
}

// EffectivePrefixes returns the union of explicit prefixes and the
// expansion of the configured market segments, deduplicated and sorted.
func EffectivePrefixes(cfg Config) []string {
	seen := make(map[string]struct{}, len(cfg.ExcludePrefixes))

	for _, p := range cfg.ExcludePrefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			seen[p] = struct{}{}
		}
	}

	for _, m := range cfg.ExcludeMarkets {
		for _, p := range marketPrefixes[strings.ToUpper(strings.TrimSpace(m))] {
			seen[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Admit decides whether an instrument code is eligible. Pure and
// deterministic; malformed codes are rejected, never admitted.
func Admit(code string, cfg Config) bool {
	pure, ok := pureCode(code)
	if !ok {
		return false
	}

	for _, p := range EffectivePrefixes(cfg) {
		if strings.HasPrefix(pure, p) {
			return false
		}
	}
	return true
}

// Apply returns the admitted subset of codes, preserving order.
// Call it at every point an instrument list is read or re-ranked;
// persisted data may predate the current filter configuration.
func Apply(codes []string, cfg Config) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if Admit(c, cfg) {
			out = append(out, c)
		}
	}
	return out
}

// pureCode validates a code and strips the exchange suffix.
// Accepted shape: six digits, optionally followed by ".XX" where the
// suffix is 2 or 3 letters (e.g. 600519.SH). Anything else fails closed.
func pureCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}

	pure := code
	if i := strings.IndexByte(code, '.'); i >= 0 {
		pure = code[:i]
		suffix := code[i+1:]
		if len(suffix) < 2 || len(suffix) > 3 {
			return "", false
		}
		for _, ch := range suffix {
			if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
				return "", false
			}
		}
	}

	if len(pure) != 6 {
		return "", false
	}
	for _, ch := range pure {
		if ch < '0' || ch > '9' {
			return "", false
		}
	}
	return pure, true
}
