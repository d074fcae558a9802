package orchestrators

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

//go:embed seed/principals.yaml
var defaultPrincipalSeed []byte

// PrincipalStoreForSeed defines the store interface needed by SeedPrincipals.
type PrincipalStoreForSeed interface {
	GetByID(ctx context.Context, id string) (principal.Principal, error)
	Save(ctx context.Context, p principal.Principal) error
}

// principalSeed is one entry of the seed file.
type principalSeed struct {
	ID             string `yaml:"id"`
	Role           string `yaml:"role"`
	Email          string `yaml:"email"`
	Phone          string `yaml:"phone"`
	Name           string `yaml:"name"`
	Password       string `yaml:"password"`
	OrganizationID string `yaml:"organization_id"`
	BusinessID     string `yaml:"business_id"`
	Points         int    `yaml:"points"`
	Inactive       bool   `yaml:"inactive"`
}

type seedFile struct {
	Principals []principalSeed `yaml:"principals"`
}

// SeedPrincipalsInput carries input for seeding. Empty Data uses the built-in demo principals.
type SeedPrincipalsInput struct {
	Data       []byte
	BcryptCost int
}

// SeedPrincipalsDeps holds dependencies for SeedPrincipals.
type SeedPrincipalsDeps struct {
	Principals PrincipalStoreForSeed
	Now        func() time.Time
}

// SeedReport counts what a seed run did.
type SeedReport struct {
	Created int
	Skipped int
}

// ExecuteSeedPrincipals creates every principal of the seed file that does not exist yet.
// It is idempotent: existing ids are skipped and never overwritten.
// PRE: Database is migrated
// POST: Every principal in the file exists
func ExecuteSeedPrincipals(ctx context.Context, input SeedPrincipalsInput, deps SeedPrincipalsDeps) (SeedReport, error) {
	data := input.Data
	if len(data) == 0 {
		data = defaultPrincipalSeed
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SeedReport{}, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Principals) == 0 {
		return SeedReport{}, errors.New("seed file lists no principals")
	}

	var report SeedReport
	for i, def := range file.Principals {
		if def.ID == "" {
			return report, fmt.Errorf("seed entry %d: id is required", i)
		}
		if _, err := deps.Principals.GetByID(ctx, def.ID); err == nil {
			report.Skipped++
			continue
		}

		r, err := role.Parse(def.Role)
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", def.ID, err)
		}
		p := principal.Principal{
			ID:             def.ID,
			Role:           r,
			Email:          def.Email,
			Phone:          def.Phone,
			Name:           def.Name,
			OrganizationID: def.OrganizationID,
			BusinessID:     def.BusinessID,
			Points:         def.Points,
			Active:         !def.Inactive,
			CreatedAt:      now().UTC(),
		}
		if err := p.Validate(); err != nil {
			return report, fmt.Errorf("seed %s: %w", def.ID, err)
		}
		if err := p.SetPassword(def.Password, input.BcryptCost); err != nil {
			return report, fmt.Errorf("seed %s: %w", def.ID, err)
		}
		if err := deps.Principals.Save(ctx, p); err != nil {
			return report, fmt.Errorf("seed %s: %w", def.ID, err)
		}
		report.Created++
	}

	slog.Info("seed_principals", "created", report.Created, "skipped", report.Skipped)
	return report, nil
}
