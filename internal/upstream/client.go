package upstream

import (
	"context"
	"sync"

	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

// Client fetches upstream subscriptions and merges them into one inventory.
type Client struct {
	Fetch fetch.Options
}

// Result is the merged view of every selected source for one synthesis pass.
// Failed holds the per-source fetch/parse errors; sources in Failed
// contributed nothing to Inventory/Groups/Rules.
type Result struct {
	Inventory *model.Inventory
	Groups    []model.Group
	Rules     []model.Rule
	Warnings  []string
	Failed    map[string]error
}

// FetchSource pulls and parses a single upstream source.
func (c *Client) FetchSource(ctx context.Context, src model.UpstreamSource) (*Document, error) {
	text, err := fetch.Text(ctx, src.URL, c.Fetch)
	if err != nil {
		return nil, err
	}
	return Parse(src.Name, text)
}

// FetchAll pulls every source concurrently and merges the survivors in
// configuration order. Merge rules: inventory entries dedup by name within
// a source (cross-source duplicates are kept); declared groups dedup by
// name keeping the first source's definition; declared rules concatenate.
func (c *Client) FetchAll(ctx context.Context, sources []model.UpstreamSource) *Result {
	docs := make([]*Document, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src model.UpstreamSource) {
			defer wg.Done()
			docs[i], errs[i] = c.FetchSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	res := &Result{
		Inventory: model.NewInventory(),
		Failed:    make(map[string]error),
	}
	groupNames := make(map[string]struct{})

	for i, src := range sources {
		if errs[i] != nil {
			res.Failed[src.Name] = errs[i]
			continue
		}
		doc := docs[i]
		for _, p := range doc.Proxies {
			res.Inventory.Add(p)
		}
		for _, g := range doc.Groups {
			if _, ok := groupNames[g.Name]; ok {
				res.Warnings = append(res.Warnings, "duplicate upstream group dropped: "+g.Name)
				continue
			}
			groupNames[g.Name] = struct{}{}
			res.Groups = append(res.Groups, g)
		}
		res.Rules = append(res.Rules, doc.Rules...)
		res.Warnings = append(res.Warnings, doc.Warnings...)
	}
	return res
}
