package normalizer

import (
	"fmt"
	"strconv"
	"strings"

	"eventscout/internal/models"
	"eventscout/pkg/utils"
)

var strs = utils.NewStringHelper()

// Step is one link of a lookup chain: a map key or a list position.
type Step interface {
	lookup(v any) (any, bool)
}

// Key looks up a field of a JSON object.
type Key string

func (k Key) lookup(v any) (any, bool) {
	var m map[string]any

	switch obj := v.(type) {
	case map[string]any:
		m = obj
	case models.RawRecord:
		m = obj
	default:
		return nil, false
	}

	next, ok := m[string(k)]

	return next, ok && next != nil
}

// Index looks up a position of a JSON array.
type Index int

func (i Index) lookup(v any) (any, bool) {
	list, ok := v.([]any)
	if !ok || int(i) < 0 || int(i) >= len(list) {
		return nil, false
	}

	next := list[i]

	return next, next != nil
}

// Path builds a chain from a dotted path where numeric segments are list
// positions: "_embedded.venues.0.address.line1".
func Path(dotted string) []Step {
	parts := strings.Split(dotted, ".")
	steps := make([]Step, 0, len(parts))

	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			steps = append(steps, Index(n))

			continue
		}

		steps = append(steps, Key(p))
	}

	return steps
}

// Dig follows steps from root and returns the string found at the end of the
// chain, or sentinel the moment any link is absent, null, of the wrong shape,
// or resolves to a blank value. Numbers and booleans are formatted.
func Dig(root any, sentinel string, steps ...Step) string {
	cur := root

	for _, step := range steps {
		next, ok := step.lookup(cur)
		if !ok {
			return sentinel
		}

		cur = next
	}

	var s string

	switch v := cur.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64, bool:
		s = fmt.Sprint(v)
	default:
		return sentinel
	}

	s = strs.NormalizeWhitespace(s)
	if s == "" {
		return sentinel
	}

	return s
}
