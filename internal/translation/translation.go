// Package translation turns finalized transcripts into their translated
// form. Providers implement Translator; the Dispatcher serializes calls so
// translations arrive in finalization order without ever stalling the
// recognition path.
package translation

import "context"

// Translator turns one finalized transcript into its translation.
// Implementations are stateless and safe for sequential reuse.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}
