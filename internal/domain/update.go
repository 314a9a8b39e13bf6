package domain

// Update is an update instruction keyed by a post URL. Replace sets a
// property to a new list of values; Delete removes properties entirely.
type Update struct {
	URL     string              `json:"url"`
	Replace map[string][]string `json:"replace,omitempty"`
	Delete  []string            `json:"delete,omitempty"`
}

// NewUpdate builds the write-back for a reconciliation result. The
// syndication property is always replaced with the full success list. The
// syndicate-to property is replaced with the failed targets if there are
// any and deleted otherwise, never both.
func NewUpdate(postURL string, result *Result) *Update {
	u := &Update{
		URL: postURL,
		Replace: map[string][]string{
			PropSyndication: result.SyndicatedURLs,
		},
	}
	if len(result.FailedTargets) > 0 {
		u.Replace[PropSyndicateTo] = result.FailedTargets
	} else {
		u.Delete = []string{PropSyndicateTo}
	}
	return u
}
