package domain

import "context"

// TargetInfo describes a syndication target. UID is a URI whose origin
// uniquely identifies the target, e.g. https://mastodon.social/@user.
type TargetInfo struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Target is a configured syndication destination.
type Target interface {
	// Info returns the identity descriptor of the target.
	Info() TargetInfo

	// Syndicate delivers the post to the target. It returns the URL of the
	// syndicated copy, or an empty string if the service accepted the request
	// without producing one.
	Syndicate(ctx context.Context, props Properties, pub *Publication) (string, error)
}

// Publication is the context a post is syndicated from.
type Publication struct {
	// Me is the canonical URL of the publication.
	Me string

	// Targets is the registry of configured syndication targets.
	Targets []Target
}

// TargetInfos returns the descriptors of all configured targets.
func (p *Publication) TargetInfos() []TargetInfo {
	infos := make([]TargetInfo, 0, len(p.Targets))
	for _, t := range p.Targets {
		infos = append(infos, t.Info())
	}
	return infos
}
