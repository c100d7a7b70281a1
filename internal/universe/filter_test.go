package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmitPrefixExclusion(t *testing.T) {
	cfg := Config{ExcludePrefixes: []string{"300", "688"}}

	assert.False(t, Admit("300001.SZ", cfg))
	assert.False(t, Admit("688001.SH", cfg))
	assert.True(t, Admit("000001.SZ", cfg))
	assert.True(t, Admit("600519.SH", cfg))
}

func TestAdmitMarketExpansion(t *testing.T) {
	// Markets only: must filter identically to the equivalent prefixes
	cfg := Config{ExcludeMarkets: []string{"STAR", "GEM"}}

	assert.False(t, Admit("688001.SH", cfg))
	assert.False(t, Admit("689009.SH", cfg))
	assert.False(t, Admit("300750.SZ", cfg))
	assert.False(t, Admit("301236.SZ", cfg))
	assert.True(t, Admit("000001.SZ", cfg))
	assert.True(t, Admit("600519.SH", cfg))
}

// Equivalence property: empty prefixes + markets behaves exactly like
// the expanded prefixes passed directly.
func TestMarketPrefixEquivalence(t *testing.T) {
	codes := []string{
		"300001.SZ", "301999.SZ", "688001.SH", "689009.SH",
		"000001.SZ", "002594.SZ", "600519.SH", "601318.SH",
		"430047.BJ", "830799.BJ",
	}

	byMarket := Config{ExcludeMarkets: []string{"STAR", "GEM", "BSE"}}
	byPrefix := Config{ExcludePrefixes: EffectivePrefixes(byMarket)}

	assert.Equal(t, Apply(codes, byPrefix), Apply(codes, byMarket))
}

// Union semantics when both fields are set: exclusions add up
func TestAdmitUnionOfExclusions(t *testing.T) {
	cfg := Config{
		ExcludePrefixes: []string{"600"},
		ExcludeMarkets:  []string{"GEM"},
	}

	assert.False(t, Admit("600519.SH", cfg))
	assert.False(t, Admit("300750.SZ", cfg))
	assert.True(t, Admit("000001.SZ", cfg))
}

func TestAdmitFailsClosed(t *testing.T) {
	cfg := Config{}

	assert.False(t, Admit("", cfg))
	assert.False(t, Admit("   ", cfg))
	assert.False(t, Admit("60051", cfg))       // too short
	assert.False(t, Admit("6005190", cfg))     // too long
	assert.False(t, Admit("60051A.SH", cfg))   // non-digit
	assert.False(t, Admit("600519.", cfg))     // empty suffix
	assert.False(t, Admit("600519.S1", cfg))   // digit in suffix
	assert.False(t, Admit("600519.SHAG", cfg)) // oversized suffix
	assert.True(t, Admit("600519", cfg))       // bare code is fine
	assert.True(t, Admit("600519.SH", cfg))
}

func TestEffectivePrefixes(t *testing.T) {
	cfg := Config{
		ExcludePrefixes: []string{"688", " 300 ", ""},
		ExcludeMarkets:  []string{"star", "GEM", "NOT_A_MARKET"},
	}

	// Deduplicated, sorted, unknown markets ignored
	assert.Equal(t, []string{"300", "301", "688", "689"}, EffectivePrefixes(cfg))

	assert.True(t, KnownMarket("STAR"))
	assert.True(t, KnownMarket("gem"))
	assert.False(t, KnownMarket("NOT_A_MARKET"))
}

func TestApplyPreservesOrder(t *testing.T) {
	cfg := Config{ExcludeMarkets: []string{"GEM"}}

	got := Apply([]string{"600519.SH", "300750.SZ", "000001.SZ", "bad"}, cfg)
	assert.Equal(t, []string{"600519.SH", "000001.SZ"}, got)
}
