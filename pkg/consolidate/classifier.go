package consolidate

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/llm"
)

// Classifier annotates content with tags: existing tags the model selected
// plus new labels it minted, capped at ledger.MaxTagsPerItem in total.
type Classifier struct {
	store  ledger.Store
	llm    llm.Client
	logger *slog.Logger
}

// NewClassifier creates a tag classifier over the given store and
// capability client.
func NewClassifier(store ledger.Store, client llm.Client, logger *slog.Logger) *Classifier {
	return &Classifier{store: store, llm: client, logger: logger}
}

// Classify returns selected existing tag ids and new labels for the
// content. Classification is best-effort: a failing capability or a failing
// tag listing yields empty results, never an error.
func (c *Classifier) Classify(ctx context.Context, content string) (selectedIDs []int64, newLabels []string) {
	tags, err := c.store.Tags(ctx)
	if err != nil {
		c.logger.Warn("tag listing failed, content goes untagged", "error", err)
		return nil, nil
	}

	existing := make([]llm.TagOption, 0, len(tags))
	known := make(map[int64]struct{}, len(tags))
	for _, t := range tags {
		existing = append(existing, llm.TagOption{ID: t.ID, Label: t.Label})
		known[t.ID] = struct{}{}
	}

	selection := c.llm.ClassifyTags(ctx, existing, content)

	// Ids the model hallucinated would fail the consolidation's foreign
	// keys; drop them here instead.
	valid := selection.SelectedIDs[:0]
	for _, id := range selection.SelectedIDs {
		if _, ok := known[id]; ok {
			valid = append(valid, id)
		}
	}
	selection.SelectedIDs = valid

	return capSelection(selection.SelectedIDs, selection.NewLabels, ledger.MaxTagsPerItem)
}

// capSelection enforces the tag cap: selected ids take priority and are
// truncated first; new labels only fill whatever room remains.
func capSelection(selectedIDs []int64, newLabels []string, max int) ([]int64, []string) {
	if len(selectedIDs) >= max {
		return selectedIDs[:max], nil
	}
	if room := max - len(selectedIDs); len(newLabels) > room {
		newLabels = newLabels[:room]
	}
	return selectedIDs, newLabels
}
