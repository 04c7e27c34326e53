package pgrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutorhub/backend/core"
	"github.com/tutorhub/backend/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

// getExec picks the caller's transaction when one was passed in.
func (repo userRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 {
		return exec[0]
	}
	return repo.db.DB
}

// dbUser mirrors the users table.
type dbUser struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) row(usr user.User) dbUser {
	u := dbUser{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        usr.Roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
	if u.Roles == nil {
		u.Roles = pq.StringArray{}
	}
	return u
}

func (repo userRepository) unrow(u dbUser) user.User {
	return user.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		IsActive:     u.IsActive.Ptr(),
		Roles:        u.Roles,
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

func (repo userRepository) unrowSlice(rows []dbUser) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, repo.unrow(u))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

const userColumns = "id, name, email, is_active, roles, password_hash, created_at, updated_at, last_login"

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := "SELECT EXISTS (SELECT 1 FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	query += ")"

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	u := repo.row(usr)
	query := `
		INSERT INTO users (name, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, query, u)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&u.ID); err != nil {
			return user.User{}, errors.Wrap(err, "inserting user")
		}
	}
	if err = rows.Err(); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %[1]s)", arg(val)))
		}
		// users holding any of the provided roles
		if len(filter.Roles) > 0 {
			conds = append(conds, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
		}
		if filter.IsActive != nil {
			conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
		}
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []dbUser
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var u dbUser
	var err error

	switch {
	case filter.ID != 0:
		err = repo.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = $1", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	var sets []string
	var args []interface{}

	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.IsActive != nil {
		set("is_active", *usr.IsActive)
	}
	if usr.Roles != nil {
		set("roles", pq.StringArray(usr.Roles))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin.UTC())
	}
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = time.Now()
	}
	set("updated_at", usr.UpdatedAt.UTC())

	args = append(args, usr.ID)
	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), userColumns,
	)

	var u dbUser
	if err := repo.db.GetContext(ctx, &u, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == 0 {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

func (repo userRepository) UpdateUserRoles(ctx context.Context, id int, roles []string, exec ...core.DBExecutor) (user.User, error) {
	row := repo.getExec(exec).QueryRowContext(
		ctx,
		"UPDATE users SET roles = $1, updated_at = now() WHERE id = $2 RETURNING "+userColumns,
		pq.StringArray(roles), id,
	)

	var u dbUser
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &u.Roles, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user roles")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}

// dbProfile mirrors the profiles table.
type dbProfile struct {
	ID                 int         `db:"id"`
	UserID             int         `db:"user_id"`
	W9File             null.String `db:"w9_file"`
	NDASigned          bool        `db:"nda_signed"`
	OnboardingComplete bool        `db:"onboarding_complete"`
	CreatedAt          null.Time   `db:"created_at"`
	UpdatedAt          null.Time   `db:"updated_at"`
}

func (repo userRepository) unrowProfile(p dbProfile) user.Profile {
	return user.Profile{
		ID:                 p.ID,
		UserID:             p.UserID,
		W9File:             p.W9File.String,
		NDASigned:          p.NDASigned,
		OnboardingComplete: p.OnboardingComplete,
		CreatedAt:          p.CreatedAt.Time,
		UpdatedAt:          p.UpdatedAt.Time,
	}
}

const profileColumns = "id, user_id, w9_file, nda_signed, onboarding_complete, created_at, updated_at"

func (repo userRepository) GetProfileByOwner(ctx context.Context, userID int) (user.Profile, error) {
	var p dbProfile
	err := repo.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
	if err != nil {
		return user.Profile{}, repo.trapNoRowsErr(err, "finding profile")
	}
	return repo.unrowProfile(p), nil
}

func (repo userRepository) QueryProfilesByOwners(ctx context.Context, userIDs []int) ([]user.Profile, error) {
	var rows []dbProfile
	query := "SELECT " + profileColumns + " FROM profiles WHERE user_id = ANY($1) ORDER BY user_id"
	if err := repo.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]user.Profile, 0, len(rows))
	for _, p := range rows {
		profiles = append(profiles, repo.unrowProfile(p))
	}
	return profiles, nil
}

func (repo userRepository) CreateProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	prof.RecalcOnboarding()
	query := `
		INSERT INTO profiles (user_id, w9_file, nda_signed, onboarding_complete)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + profileColumns
	var p dbProfile
	err := repo.db.GetContext(ctx, &p, query, prof.UserID, null.StringFrom(prof.W9File), prof.NDASigned, prof.OnboardingComplete)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return repo.unrowProfile(p), nil
}

func (repo userRepository) ReassignProfile(ctx context.Context, profileID, newUserID int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(
		ctx,
		"UPDATE profiles SET user_id = $1, updated_at = now() WHERE id = $2",
		newUserID, profileID,
	)
	if err != nil {
		return errors.Wrap(err, "reassigning profile")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reassigning profile")
	}
	if cnt == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) UserStats(ctx context.Context, newSince time.Time) (user.Stats, error) {
	var stats user.Stats
	query := `
		SELECT count(*)                                          AS total_users,
		       count(*) FILTER (WHERE is_active)                 AS active_users,
		       count(*) FILTER (WHERE created_at >= $1)          AS new_users_today
		FROM users`
	row := repo.db.QueryRowxContext(ctx, query, newSince.UTC())
	if err := row.Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.NewUsersToday); err != nil {
		return user.Stats{}, errors.Wrap(err, "querying user stats")
	}
	return stats, nil
}
