package health

import (
	"context"
	"fmt"

	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderLookup resolves a provider type to its instance.
type ProviderLookup interface {
	Lookup(typeName string) (provider.Provider, error)
}

// RegisterProviders adds one readiness check per distinct provider account,
// identified by provider type and API token. Checks are named after the type
// and the first host using the account, so tokens never show up in output.
func (s *Server) RegisterProviders(providers ProviderLookup, domains []provider.DomainConfig) int {
	type account struct {
		typeName string
		token    string
	}

	seen := make(map[account]bool)
	for _, d := range domains {
		key := account{typeName: d.Provider, token: d.APIToken}
		if seen[key] {
			continue
		}
		seen[key] = true

		s.RegisterChecker(fmt.Sprintf("provider:%s:%s", d.Provider, d.Host), pingChecker(providers, d))
	}

	return len(seen)
}

func pingChecker(providers ProviderLookup, domain provider.DomainConfig) HealthChecker {
	return func(ctx context.Context) error {
		p, err := providers.Lookup(domain.Provider)
		if err != nil {
			metrics.SetProviderHealthy(domain.Provider, false)
			return err
		}

		err = p.Ping(ctx, domain)
		metrics.SetProviderHealthy(domain.Provider, err == nil)
		return err
	}
}
