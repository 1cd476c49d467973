package matching

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// identGen produces strings shaped like real model identifiers, including
// provider prefixes and variant tags.
func identGen() gopter.Gen {
	base := gen.RegexMatch(`[a-z][a-z0-9.-]{0,14}`)
	return base.FlatMap(func(v interface{}) gopter.Gen {
		b := v.(string)
		return gen.OneConstOf(b, b+":7b", b+":latest", "ollama/"+b, "openai/"+b+":8b")
	}, reflect.TypeOf(""))
}

func TestSimilarityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("score is bounded to [0,1]", prop.ForAll(
		func(a, b string) bool {
			s := Similarity(a, b)
			return s >= 0.0 && s <= 1.0
		},
		identGen(), identGen(),
	))

	properties.Property("score is symmetric", prop.ForAll(
		func(a, b string) bool {
			return Similarity(a, b) == Similarity(b, a)
		},
		identGen(), identGen(),
	))

	properties.Property("identifiers score 1.0 against themselves", prop.ForAll(
		func(a string) bool {
			return Similarity(a, a) == 1.0
		},
		identGen(),
	))

	properties.Property("an exact candidate always resolves to itself", prop.ForAll(
		func(a, other string) bool {
			if strings.HasPrefix(a, "remote") {
				// Prefix stripping rewrites the requested id first; exact
				// resolution is only guaranteed for unprefixed identifiers.
				return true
			}
			match, score, ok := Resolve(a, []string{a, other})
			return ok && match == a && score == 1.0
		},
		identGen(), identGen(),
	))

	properties.TestingRun(t)
}
