package program

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// The built-in catalog. Seeding is an explicit, idempotent routine run by the
// operator (admin CLI `seed`), not a side effect of migrations or startup.
var (
	seedRoles = []Role{
		{
			Name:             "Facilitator",
			HourlyRate:       25.00,
			Responsibilities: "Run sessions, manage materials, implement lessons, prepare/clean up, provide feedback, engage with parents, update records.",
		},
		{
			Name:             "Curriculum Designer",
			HourlyRate:       35.00,
			Responsibilities: "Create, adapt, and improve lesson plans and curriculum content.",
		},
		{
			Name:             "Admin Support",
			HourlyRate:       20.00,
			Responsibilities: "Coordinate logistics, registration, email communication, and contractor setup.",
		},
		{
			Name:             "Owner Oversight",
			HourlyRate:       40.00,
			Responsibilities: "Leadership, quality control, policy, contractor management, process improvement.",
		},
		{
			Name:             "Float Support",
			HourlyRate:       18.00,
			Responsibilities: "Assist facilitators with behavior support, logistics, and material readiness.",
		},
	}

	seedBaseCosts = []BaseCost{
		{
			Name:           "Materials & Supplies",
			CostPerStudent: 15.00,
			Description:    "Covers materials like printed handouts, manipulatives, STEM kits, art supplies.",
		},
		{
			Name:           "Location",
			CostPerStudent: 25.00,
			Description:    "Site rental or partner facility share for in-person delivery.",
		},
		{
			Name:           "Platform & Insurance",
			CostPerStudent: 10.00,
			Description:    "Business infrastructure, web platform, liability coverage.",
		},
	}
)

type (
	Repository interface {
		GetRoleByName(ctx context.Context, name string) (Role, error)
		CreateRole(ctx context.Context, role Role) (Role, error)
		UpdateRole(ctx context.Context, role Role) (Role, error)
		QueryRoles(ctx context.Context) ([]Role, error)

		GetBaseCostByName(ctx context.Context, name string) (BaseCost, error)
		CreateBaseCost(ctx context.Context, bc BaseCost) (BaseCost, error)
		UpdateBaseCost(ctx context.Context, bc BaseCost) (BaseCost, error)
		QueryBaseCosts(ctx context.Context) ([]BaseCost, error)
	}

	Service interface {
		QueryRoles(ctx context.Context) ([]Role, error)
		QueryBaseCosts(ctx context.Context) ([]BaseCost, error)
		Seed(ctx context.Context) (SeedReport, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) QueryRoles(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *service) QueryBaseCosts(ctx context.Context) ([]BaseCost, error) {
	return svc.repo.QueryBaseCosts(ctx)
}

// SeedReport counts what Seed created or refreshed.
type SeedReport struct {
	RolesCreated     int
	RolesUpdated     int
	BaseCostsCreated int
	BaseCostsUpdated int
}

// Seed creates or refreshes the built-in roles and base costs by name.
// Running it any number of times yields the same catalog.
func (svc *service) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	for _, role := range seedRoles {
		existing, err := svc.repo.GetRoleByName(ctx, role.Name)
		if err != nil {
			if errors.Cause(err) != ErrNotFound {
				return report, errors.Wrapf(err, "looking up role %q", role.Name)
			}
			if _, err = svc.repo.CreateRole(ctx, role); err != nil {
				return report, errors.Wrapf(err, "creating role %q", role.Name)
			}
			report.RolesCreated++
			continue
		}
		existing.HourlyRate = role.HourlyRate
		existing.Responsibilities = role.Responsibilities
		if _, err = svc.repo.UpdateRole(ctx, existing); err != nil {
			return report, errors.Wrapf(err, "updating role %q", role.Name)
		}
		report.RolesUpdated++
	}

	for _, bc := range seedBaseCosts {
		existing, err := svc.repo.GetBaseCostByName(ctx, bc.Name)
		if err != nil {
			if errors.Cause(err) != ErrNotFound {
				return report, errors.Wrapf(err, "looking up base cost %q", bc.Name)
			}
			if _, err = svc.repo.CreateBaseCost(ctx, bc); err != nil {
				return report, errors.Wrapf(err, "creating base cost %q", bc.Name)
			}
			report.BaseCostsCreated++
			continue
		}
		existing.CostPerStudent = bc.CostPerStudent
		existing.Description = bc.Description
		if _, err = svc.repo.UpdateBaseCost(ctx, existing); err != nil {
			return report, errors.Wrapf(err, "updating base cost %q", bc.Name)
		}
		report.BaseCostsUpdated++
	}

	return report, nil
}
