package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripRemotePrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"remote_edl9t5a53mdsu3ttw_mistral-nemo:12b", "mistral-nemo:12b"},
		{"remote_abc123_gpt-4o-mini", "gpt-4o-mini"},
		{"remote_xyz789_claude-3-haiku:latest", "claude-3-haiku:latest"},
		{"remote_server01_llama3.1:8b", "llama3.1:8b"},
		// Underscores inside the model name survive.
		{"remote_id123_some_model_with_underscores:tag", "some_model_with_underscores:tag"},
		// Literal prefixes.
		{"remote-mistral-nemo:12b", "mistral-nemo:12b"},
		{"remote:gpt-4", "gpt-4"},
		// Provider-prefixed model names.
		{"remote_srv_anthropic/claude-3-haiku", "anthropic/claude-3-haiku"},
		// Non-remote identifiers pass through.
		{"gpt-4o-mini", "gpt-4o-mini"},
		{"mistral-nemo:12b", "mistral-nemo:12b"},
		{"anthropic/claude-3-sonnet", "anthropic/claude-3-sonnet"},
		// Malformed prefixes are deliberately left alone.
		{"remote_", "remote_"},
		{"remote", "remote"},
		{"", ""},
		{"remote_only_one_underscore", "remote_only_one_underscore"},
		// Token shorter than 3 characters does not qualify.
		{"remote_ab_model", "remote_ab_model"},
		{"remote_abc123_model", "model"},
		// Token may contain dashes but not other punctuation.
		{"remote_srv-01_phi4:latest", "phi4:latest"},
		{"remote_s.v_phi4:latest", "remote_s.v_phi4:latest"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StripRemotePrefix(tc.in), "input %q", tc.in)
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("mistral-nemo:12b", "mistral-nemo:12b"))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("MISTRAL-NEMO:12B", "mistral-nemo:12b"))
	})

	t.Run("variant mismatch on identical base is penalized", func(t *testing.T) {
		// Identical bases with different size tags must score well below
		// the acceptance threshold.
		score := Similarity("mistral-nemo:12b", "mistral-nemo:10b")
		assert.Equal(t, 0.5, score)
		assert.Less(t, score, Threshold)
	})

	t.Run("missing variant scores partial agreement", func(t *testing.T) {
		// base 1.0, variant one-sided: 0.7*1.0 + 0.3*0.3
		assert.InDelta(t, 0.79, Similarity("mistral-nemo", "mistral-nemo:12b"), 1e-9)
	})

	t.Run("provider prefix ignored", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("anthropic/claude-3-haiku-20240307", "claude-3-haiku-20240307"))
	})

	t.Run("substring bases scale by length ratio", func(t *testing.T) {
		// "gpt-4" is a substring of "gpt-4o-mini": 5/11 base, both no variant.
		assert.InDelta(t, 0.7*(5.0/11.0)+0.3, Similarity("gpt-4o-mini", "gpt-4"), 1e-9)
	})
}

func TestResolve_RemotePrefix(t *testing.T) {
	candidates := []string{"gpt-4o-mini", "mistral-nemo:12b", "llama3.1:8b"}

	match, score, ok := Resolve("remote_edl9t5a53mdsu3ttw_mistral-nemo:12b", candidates)
	require.True(t, ok)
	assert.Equal(t, "mistral-nemo:12b", match)
	assert.Equal(t, 1.0, score)

	// Token "ab" is only 2 characters: the prefix stays, so any match must
	// come from generic similarity, which fails here.
	_, _, ok = Resolve("remote_ab_model", []string{"model"})
	assert.False(t, ok)
}

func TestResolve_VariantStrictness(t *testing.T) {
	_, score, ok := Resolve("mistral:10b", []string{"mistral:22b"})
	assert.False(t, ok)
	assert.Less(t, score, Threshold)
}

func TestResolve_ThresholdBoundary(t *testing.T) {
	// Substring ratio 4/7 with agreeing (empty) variants lands exactly on
	// the 0.70 threshold and must be accepted.
	match, score, ok := Resolve("abcdefg", []string{"abcd"})
	require.True(t, ok)
	assert.Equal(t, "abcd", match)
	assert.Equal(t, 0.7, score)

	// Ratio 5/9 scores just under the threshold and must be rejected.
	_, score, ok = Resolve("abcdefghi", []string{"abcde"})
	assert.False(t, ok)
	assert.Less(t, score, Threshold)
}

func TestResolve_NoCandidatesOrEmptyInput(t *testing.T) {
	_, _, ok := Resolve("", []string{"gpt-4o-mini"})
	assert.False(t, ok)

	_, _, ok = Resolve("gpt-4o-mini", nil)
	assert.False(t, ok)
}

func TestResolve_FirstAtMaxWins(t *testing.T) {
	// Both candidates score identically against the request; input order
	// breaks the tie.
	match, _, ok := Resolve("llama3.1", []string{"llama3.1:8b", "llama3.1:70b"})
	require.True(t, ok)
	assert.Equal(t, "llama3.1:8b", match)
}

func TestResolve_PartialWithoutVariant(t *testing.T) {
	match, score, ok := Resolve("llama3.1", []string{"gpt-4o-mini", "llama3.1:8b"})
	require.True(t, ok)
	assert.Equal(t, "llama3.1:8b", match)
	assert.InDelta(t, 0.79, score, 1e-9)
}
