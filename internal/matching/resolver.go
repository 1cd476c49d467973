// Package matching implements fuzzy resolution of requested model
// identifiers against the registry. The dominant failure mode it targets is
// a near-miss caused by orchestration prefixes (remote_<id>_...) or
// version-tag mismatch (mistral:10b vs mistral:22b), not general typos, so
// the scoring privileges precision on those two axes over recall elsewhere.
package matching

import "strings"

// Threshold is the minimum similarity score for an accepted fuzzy match.
// Scores exactly at the threshold are accepted.
const Threshold = 0.70

// StripRemotePrefix removes synthetic routing prefixes of the shape
// remote_<token>_<rest>, where <token> is alphanumeric (dashes allowed) and
// at least 3 characters, plus literal "remote-" and "remote:" prefixes.
// Anything else is returned unchanged: an identifier that merely starts
// with "remote" must not be corrupted.
func StripRemotePrefix(id string) string {
	if id == "" {
		return id
	}

	if strings.HasPrefix(id, "remote_") {
		parts := strings.Split(id, "_")
		if len(parts) >= 3 && isRoutingToken(parts[1]) {
			// Re-join from the third segment so underscores inside the
			// model name survive.
			id = strings.Join(parts[2:], "_")
		}
	}

	if strings.HasPrefix(id, "remote-") {
		id = id[len("remote-"):]
	}
	if strings.HasPrefix(id, "remote:") {
		id = id[len("remote:"):]
	}

	return strings.TrimSpace(id)
}

// isRoutingToken reports whether s looks like a synthetic routing id:
// at least 3 characters, alphanumeric once dashes are removed.
func isRoutingToken(s string) bool {
	if len(s) < 3 {
		return false
	}
	seen := false
	for _, r := range s {
		if r == '-' {
			continue
		}
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
		seen = true
	}
	return seen
}

// splitParts decomposes a model identifier into base name and variant tag.
//
//	"mistral-nemo:12b"       -> ("mistral-nemo", "12b")
//	"anthropic/claude-3"     -> ("claude-3", "")
//	"gpt-4o-mini"            -> ("gpt-4o-mini", "")
func splitParts(id string) (base, variant string) {
	if i := strings.Index(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.Index(id, ":"); i >= 0 {
		return strings.TrimSpace(id[:i]), strings.TrimSpace(id[i+1:])
	}
	return strings.TrimSpace(id), ""
}

// Similarity scores two model identifiers in [0, 1]. Scoring is
// case-insensitive.
func Similarity(requested, candidate string) float64 {
	req := strings.ToLower(requested)
	cand := strings.ToLower(candidate)

	if req == cand {
		return 1.0
	}

	reqBase, reqVariant := splitParts(req)
	candBase, candVariant := splitParts(cand)

	baseSim := baseSimilarity(reqBase, candBase)

	// Unequal variant tags on near-identical bases are a strong negative
	// signal: mistral:10b must never be a near-match for mistral:22b.
	if baseSim > 0.8 && reqVariant != candVariant && reqVariant != "" && candVariant != "" {
		return baseSim * 0.5
	}

	variantSim := 0.3
	if reqVariant == candVariant {
		variantSim = 1.0
	}

	return baseSim*0.7 + variantSim*0.3
}

// baseSimilarity compares two base names: identity, then containment
// scaled by length ratio, then character-set Jaccard. The Jaccard step is
// a deliberate low-cost approximation over the set of characters, not an
// edit distance.
func baseSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return float64(shorter) / float64(longer)
	}

	setA := make(map[rune]struct{}, len(a))
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{}, len(b))
	for _, r := range b {
		setB[r] = struct{}{}
	}

	intersection := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// Resolve finds the best matching candidate for a requested identifier.
// The cleaned identifier is first checked for case-sensitive equality;
// otherwise every candidate is scored and the maximum kept, accepted only
// at or above Threshold. Ties at the maximum resolve to the first
// candidate in input order.
func Resolve(requested string, candidates []string) (match string, score float64, ok bool) {
	if requested == "" || len(candidates) == 0 {
		return "", 0, false
	}

	clean := StripRemotePrefix(requested)

	for _, c := range candidates {
		if c == clean {
			return c, 1.0, true
		}
	}

	var best string
	var bestScore float64
	for _, c := range candidates {
		s := Similarity(clean, c)
		if s > bestScore && s >= Threshold {
			bestScore = s
			best = c
		}
	}

	if best == "" {
		return "", bestScore, false
	}
	return best, bestScore, true
}
