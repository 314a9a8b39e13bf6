package domain

import (
	"context"
	"log/slog"
)

// Result is the state delta produced by reconciling one post.
type Result struct {
	// SyndicatedURLs holds every successful delivery, previous and new.
	SyndicatedURLs []string `json:"syndication"`

	// FailedTargets lists requested targets that have not yet succeeded.
	// A nil slice means every requested target is satisfied.
	FailedTargets []string `json:"failedTargets,omitempty"`
}

// ReconcileOptions tunes a reconciliation.
type ReconcileOptions struct {
	// Force re-delivers requested targets even if they already succeeded.
	Force bool
}

// RequestedTargets normalizes the syndicate-to property to a list of target
// identifiers. The property holds either a single identifier or a list.
func RequestedTargets(props Properties) []string {
	switch v := props[PropSyndicateTo].(type) {
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	case []string:
		ids := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Reconcile works out which requested targets still need the post, delivers
// it to each of them in order and returns the merged syndication state. The
// input properties are never modified. Delivery errors are logged and
// recorded as failed targets.
func Reconcile(ctx context.Context, pub *Publication, props Properties, opts ReconcileOptions, logger *slog.Logger) *Result {
	requested := RequestedTargets(props)
	syndicated := append([]string(nil), props.Strings(PropSyndication)...)

	if opts.Force {
		syndicated = pruneRequested(syndicated, requested)
	}

	postURL := props.String(PropURL)
	attempted := make(map[string]struct{}, len(requested))
	var failed []string

	for _, id := range requested {
		target, ok := ResolveTarget(pub.Targets, id)
		if !ok {
			logger.Debug("no target configured for identifier", "url", postURL, "target", id)
			continue
		}

		if AlreadySatisfied(syndicated, id, opts.Force) {
			continue
		}

		key, _ := origin(id)
		if _, seen := attempted[key]; seen {
			continue
		}
		attempted[key] = struct{}{}

		syndicatedURL, err := target.Syndicate(ctx, props, pub)
		switch {
		case err != nil:
			logger.Error("syndication failed", "url", postURL, "target", id, "error", err)
			failed = append(failed, id)
		case syndicatedURL == "":
			logger.Warn("target returned no syndicated url", "url", postURL, "target", id)
			failed = append(failed, id)
		default:
			logger.Info("syndicated post", "url", postURL, "target", id, "syndicated_url", syndicatedURL)
			syndicated = append(syndicated, syndicatedURL)
		}
	}

	if syndicated == nil {
		syndicated = []string{}
	}

	return &Result{
		SyndicatedURLs: syndicated,
		FailedTargets:  failed,
	}
}

// pruneRequested drops syndicated URLs whose origin matches one of the
// requested identifiers. Unrelated entries are kept in order.
func pruneRequested(syndicated, requested []string) []string {
	kept := syndicated[:0:0]
	for _, u := range syndicated {
		matched := false
		for _, id := range requested {
			if OriginsMatch(u, id) {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, u)
		}
	}
	return kept
}
