package main

import (
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/blackmichael/syndicator/internal/bluesky"
	"github.com/blackmichael/syndicator/internal/config"
	"github.com/blackmichael/syndicator/internal/domain"
	"github.com/blackmichael/syndicator/internal/mastodon"
)

// buildTargets constructs the target registry in configuration order.
func buildTargets(configs []config.TargetConfig) ([]domain.Target, error) {
	targets := make([]domain.Target, 0, len(configs))
	for i, tc := range configs {
		limiter := newLimiter(tc.RatePerSec)

		switch tc.Type {
		case config.TargetBluesky:
			client := bluesky.NewClient(tc.PDS, limiter)
			targets = append(targets, bluesky.NewSyndicator(client, tc.Handle, tc.Password))
		case config.TargetMastodon:
			s, err := mastodon.NewSyndicator(tc.Instance, tc.User, tc.AccessToken, limiter)
			if err != nil {
				return nil, fmt.Errorf("target %d: %w", i, err)
			}
			targets = append(targets, s)
		default:
			return nil, fmt.Errorf("target %d: unknown type %q", i, tc.Type)
		}
	}
	return targets, nil
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSec))
	return rate.NewLimiter(rate.Limit(perSec), burst)
}
