package pgrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutorhub/backend/core/program"
)

type programRepository struct {
	db *sqlx.DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *sql.DB) *programRepository {
	return &programRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo programRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return program.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

type dbProgramRole struct {
	ID               int         `db:"id"`
	Name             string      `db:"name"`
	HourlyRate       float64     `db:"hourly_rate"`
	Responsibilities null.String `db:"responsibilities"`
	CreatedAt        null.Time   `db:"created_at"`
	UpdatedAt        null.Time   `db:"updated_at"`
}

func (repo programRepository) unrowRole(r dbProgramRole) program.Role {
	return program.Role{
		ID:               r.ID,
		Name:             r.Name,
		HourlyRate:       r.HourlyRate,
		Responsibilities: r.Responsibilities.String,
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}

type dbBaseCost struct {
	ID             int         `db:"id"`
	Name           string      `db:"name"`
	CostPerStudent float64     `db:"cost_per_student"`
	Description    null.String `db:"description"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
}

func (repo programRepository) unrowBaseCost(bc dbBaseCost) program.BaseCost {
	return program.BaseCost{
		ID:             bc.ID,
		Name:           bc.Name,
		CostPerStudent: bc.CostPerStudent,
		Description:    bc.Description.String,
		CreatedAt:      bc.CreatedAt.Time,
		UpdatedAt:      bc.UpdatedAt.Time,
	}
}

const (
	roleColumns     = "id, name, hourly_rate, responsibilities, created_at, updated_at"
	baseCostColumns = "id, name, cost_per_student, description, created_at, updated_at"
)

func (repo programRepository) GetRoleByName(ctx context.Context, name string) (program.Role, error) {
	var r dbProgramRole
	err := repo.db.GetContext(ctx, &r, "SELECT "+roleColumns+" FROM program_roles WHERE name = $1", name)
	if err != nil {
		return program.Role{}, repo.trapNoRowsErr(err, "finding program role")
	}
	return repo.unrowRole(r), nil
}

func (repo programRepository) CreateRole(ctx context.Context, role program.Role) (program.Role, error) {
	query := `
		INSERT INTO program_roles (name, hourly_rate, responsibilities)
		VALUES ($1, $2, $3)
		RETURNING ` + roleColumns
	var r dbProgramRole
	err := repo.db.GetContext(ctx, &r, query, role.Name, role.HourlyRate, null.StringFrom(role.Responsibilities))
	if err != nil {
		return program.Role{}, errors.Wrap(err, "inserting program role")
	}
	return repo.unrowRole(r), nil
}

func (repo programRepository) UpdateRole(ctx context.Context, role program.Role) (program.Role, error) {
	query := `
		UPDATE program_roles
		SET name = $1, hourly_rate = $2, responsibilities = $3, updated_at = now()
		WHERE id = $4
		RETURNING ` + roleColumns
	var r dbProgramRole
	err := repo.db.GetContext(ctx, &r, query, role.Name, role.HourlyRate, null.StringFrom(role.Responsibilities), role.ID)
	if err != nil {
		return program.Role{}, repo.trapNoRowsErr(err, "updating program role")
	}
	return repo.unrowRole(r), nil
}

func (repo programRepository) QueryRoles(ctx context.Context) ([]program.Role, error) {
	var rows []dbProgramRole
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+roleColumns+" FROM program_roles ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying program roles")
	}
	roles := make([]program.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, repo.unrowRole(r))
	}
	return roles, nil
}

func (repo programRepository) GetBaseCostByName(ctx context.Context, name string) (program.BaseCost, error) {
	var bc dbBaseCost
	err := repo.db.GetContext(ctx, &bc, "SELECT "+baseCostColumns+" FROM base_costs WHERE name = $1", name)
	if err != nil {
		return program.BaseCost{}, repo.trapNoRowsErr(err, "finding base cost")
	}
	return repo.unrowBaseCost(bc), nil
}

func (repo programRepository) CreateBaseCost(ctx context.Context, bc program.BaseCost) (program.BaseCost, error) {
	query := `
		INSERT INTO base_costs (name, cost_per_student, description)
		VALUES ($1, $2, $3)
		RETURNING ` + baseCostColumns
	var row dbBaseCost
	err := repo.db.GetContext(ctx, &row, query, bc.Name, bc.CostPerStudent, null.StringFrom(bc.Description))
	if err != nil {
		return program.BaseCost{}, errors.Wrap(err, "inserting base cost")
	}
	return repo.unrowBaseCost(row), nil
}

func (repo programRepository) UpdateBaseCost(ctx context.Context, bc program.BaseCost) (program.BaseCost, error) {
	query := `
		UPDATE base_costs
		SET name = $1, cost_per_student = $2, description = $3, updated_at = now()
		WHERE id = $4
		RETURNING ` + baseCostColumns
	var row dbBaseCost
	err := repo.db.GetContext(ctx, &row, query, bc.Name, bc.CostPerStudent, null.StringFrom(bc.Description), bc.ID)
	if err != nil {
		return program.BaseCost{}, repo.trapNoRowsErr(err, "updating base cost")
	}
	return repo.unrowBaseCost(row), nil
}

func (repo programRepository) QueryBaseCosts(ctx context.Context) ([]program.BaseCost, error) {
	var rows []dbBaseCost
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+baseCostColumns+" FROM base_costs ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying base costs")
	}
	costs := make([]program.BaseCost, 0, len(rows))
	for _, bc := range rows {
		costs = append(costs, repo.unrowBaseCost(bc))
	}
	return costs, nil
}
