package billing

import (
	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
)

// Pricer resolves the credit cost of a task kind from configuration.
type Pricer struct {
	defaultCost int64
	costs       map[string]int64
}

// NewPricer creates a Pricer from pricing configuration.
func NewPricer(cfg config.PricingConfig) *Pricer {
	return &Pricer{
		defaultCost: cfg.DefaultCost,
		costs:       cfg.Costs,
	}
}

// CostFor returns the configured cost for kind, falling back to the
// default cost for kinds without an explicit price.
func (p *Pricer) CostFor(kind domain.TaskKind) int64 {
	if cost, ok := p.costs[string(kind)]; ok {
		return cost
	}
	return p.defaultCost
}
