package engine

import (
	"log/slog"
	"strings"

	"github.com/use-agent/sieve/dom"
)

// MinVisibleText is the body text length below which a static document is
// treated as a shell awaiting client-side rendering. Text nodes are trimmed
// and counted back to back.
const MinVisibleText = 200

// mountSignatures mark a client-side framework mount point. They are matched
// against the lower-cased serialized body.
var mountSignatures = []string{
	`id="root"`,
	`id="app"`,
	`id="__next"`,
	`data-reactroot`,
	`ng-app`,
	`v-cloak`,
}

// IsSufficient reports whether a statically fetched document already carries
// representative content. It never mutates doc.
func IsSufficient(doc *dom.Document, logger *slog.Logger) bool {
	if doc == nil {
		return false
	}
	body, ok := doc.Body()
	if !ok {
		return false
	}
	if body.VisibleTextLen() < MinVisibleText {
		return false
	}

	markup := strings.ToLower(body.OuterHTML())
	for _, sig := range mountSignatures {
		if strings.Contains(markup, sig) {
			if logger != nil {
				logger.Info("framework mount point found", "signature", sig)
			}
			return false
		}
	}
	return true
}
