// ABOUTME: TOML seed files for provisioning companies and agent rosters
// ABOUTME: Applying a seed is idempotent: companies whose public key exists are skipped

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
)

// Seed is the decoded form of a companies seed file:
//
//	[[companies]]
//	name = "Acme"
//	public_key = "acme"
//
//	  [[companies.agents]]
//	  name = "Ada"
//	  available = true
type Seed struct {
	Companies []SeedCompany `toml:"companies"`
}

// SeedCompany is one company entry in a seed file
type SeedCompany struct {
	Name      string      `toml:"name"`
	PublicKey string      `toml:"public_key"`
	Agents    []SeedAgent `toml:"agents"`
}

// SeedAgent is one roster entry; order in the file is roster order
type SeedAgent struct {
	Name      string `toml:"name"`
	Available bool   `toml:"available"`
}

// CompanyWriter is the subset of AdminStore needed to apply a seed
type CompanyWriter interface {
	CreateCompany(ctx context.Context, company *Company) error
}

// LoadSeedFile decodes and validates a seed file
func LoadSeedFile(path string) (*Seed, error) {
	var seed Seed
	if _, err := toml.DecodeFile(path, &seed); err != nil {
		return nil, fmt.Errorf("decoding seed file: %w", err)
	}

	seen := make(map[string]bool, len(seed.Companies))
	for i, c := range seed.Companies {
		if c.PublicKey == "" {
			return nil, fmt.Errorf("companies[%d]: public_key is required", i)
		}
		if seen[c.PublicKey] {
			return nil, fmt.Errorf("companies[%d]: duplicate public_key %q", i, c.PublicKey)
		}
		seen[c.PublicKey] = true
		for j, a := range c.Agents {
			if a.Name == "" {
				return nil, fmt.Errorf("companies[%d].agents[%d]: name is required", i, j)
			}
		}
	}

	return &seed, nil
}

// ApplySeed creates every company in the seed that doesn't exist yet.
// Returns the number of companies created.
func ApplySeed(ctx context.Context, w CompanyWriter, seed *Seed, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	created := 0
	for _, sc := range seed.Companies {
		company := &Company{
			Name:      sc.Name,
			PublicKey: sc.PublicKey,
		}
		for _, sa := range sc.Agents {
			company.Agents = append(company.Agents, &Agent{
				Name:      sa.Name,
				Available: sa.Available,
			})
		}

		err := w.CreateCompany(ctx, company)
		if errors.Is(err, ErrDuplicateCompany) {
			logger.Info("company already seeded, skipping", "public_key", sc.PublicKey)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seeding company %q: %w", sc.PublicKey, err)
		}

		logger.Info("seeded company", "public_key", sc.PublicKey, "id", company.ID, "agents", len(company.Agents))
		created++
	}

	return created, nil
}
