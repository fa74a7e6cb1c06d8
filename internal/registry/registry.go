// Package registry builds the shared-encoder module registry from
// configuration.
package registry

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/cartridge/multipolicy/internal/config"
	"github.com/cartridge/multipolicy/internal/module"
)

// Build constructs the encoder, one head per configured policy, and the
// router over them. Weights are drawn from a source seeded with cfg.Seed, in
// encoder-then-policy-order so equal configs produce equal weights.
func Build(cfg *config.Config, logger zerolog.Logger) (*module.MultiModule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	encoder, err := module.NewEncoder(cfg.ObsDim, cfg.FeatureDim, rng)
	if err != nil {
		return nil, err
	}

	policies := make(map[string]module.Module, len(cfg.Policies))
	for _, p := range cfg.Policies {
		head, err := module.NewPolicyHead(cfg.FeatureDim, cfg.HiddenDimFor(p), p.NActions, rng)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.ID, err)
		}
		policies[p.ID] = head
	}

	router, err := module.New(encoder, policies,
		module.WithParallel(cfg.Parallelism),
		module.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("obs_dim", cfg.ObsDim).
		Int("feature_dim", cfg.FeatureDim).
		Strs("policies", router.PolicyIDs()).
		Msg("module registry built")
	return router, nil
}
