package dom

import (
	"log/slog"
	"sync"

	"github.com/andybalholm/cascadia"
)

// compiled caches selectors by their source text. The set of patterns used
// by the extractor is fixed, so the cache stays small.
var compiled sync.Map // string -> cascadia.Selector

// matcher returns the compiled selector for pattern, or nil when the pattern
// does not parse.
func matcher(pattern string) cascadia.Selector {
	if v, ok := compiled.Load(pattern); ok {
		return v.(cascadia.Selector)
	}
	sel, err := cascadia.Compile(pattern)
	if err != nil {
		slog.Debug("dom: invalid selector", "pattern", pattern, "error", err)
		return nil
	}
	compiled.Store(pattern, sel)
	return sel
}
