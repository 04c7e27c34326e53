package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tutorhub/backend/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	// Repository is the identity store. The merge executor runs its writes in a
	// caller-owned transaction, hence the variadic exec on the mutation calls it
	// needs; everything else runs on the repository's own connection.
	Repository interface {
		// CheckEmailUniqueness compares emails exactly as stored; case variants
		// of the same address are distinct accounts until merged.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		UpdateUserRoles(ctx context.Context, id int, roles []string, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)
		UserStats(ctx context.Context, newSince time.Time) (Stats, error)

		GetProfileByOwner(ctx context.Context, userID int) (Profile, error)
		QueryProfilesByOwners(ctx context.Context, userIDs []int) ([]Profile, error)
		CreateProfile(ctx context.Context, prof Profile) (Profile, error)
		ReassignProfile(ctx context.Context, profileID, newUserID int, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id int, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...int) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		Stats(ctx context.Context) (Stats, error)
		MergeDuplicateAccounts(ctx context.Context, opts MergeOptions) (MergeReport, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	InitTokenGenerator(conf)
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email)})
}

func (svc *service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		IsActive:  uu.IsActive,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...int) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	return svc.repo.UserStats(ctx, midnight)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Password Reset",
			TemplateName: "password-reset",
			TemplateData: struct {
				UID   string
				Token string
			}{
				UID:   EncodeUID(usr),
				Token: makeToken(usr),
			},
		},
	)
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// MergeOptions control a duplicate-account consolidation run.
type MergeOptions struct {
	// DryRun reports what would be merged without touching the store.
	DryRun bool
	// Email restricts the run to one normalized email group.
	Email string
}

// MergeGroupResult summarizes one processed duplicate group.
type MergeGroupResult struct {
	Email        string // normalized
	Primary      User
	Duplicates   []User
	Roles        []string // the primary's resulting role set
	ProfileMoved bool
	Err          error // non-nil when the group's transaction rolled back
}

// MergeReport is the outcome of a whole consolidation run.
type MergeReport struct {
	DryRun bool
	Groups []MergeGroupResult
}

func (r MergeReport) MergedCount() int {
	var n int
	for _, g := range r.Groups {
		if g.Err == nil {
			n++
		}
	}
	return n
}

func (r MergeReport) FailedCount() int { return len(r.Groups) - r.MergedCount() }

// MergeDuplicateAccounts consolidates users sharing a normalized email into the
// oldest account. Each duplicate group is merged in its own transaction; a
// failed group rolls back and is reported, and the run moves on to the next
// group. A dry run never mutates the store.
func (svc *service) MergeDuplicateAccounts(ctx context.Context, opts MergeOptions) (MergeReport, error) {
	users, err := svc.repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "id", Ascending: true}})
	if err != nil {
		return MergeReport{}, errors.Wrap(err, "querying users")
	}

	report := MergeReport{DryRun: opts.DryRun}
	for _, group := range GroupByEmail(users, opts.Email) {
		if !group.HasDuplicates() {
			continue
		}

		profiles, err := svc.repo.QueryProfilesByOwners(ctx, memberIDs(group))
		if err != nil {
			report.Groups = append(report.Groups, MergeGroupResult{Email: group.Email, Err: errors.Wrap(err, "querying profiles")})
			continue
		}
		profilesByUser := make(map[int]Profile, len(profiles))
		for _, prof := range profiles {
			profilesByUser[prof.UserID] = prof
		}

		plan, ok := PlanMerge(group, profilesByUser)
		if !ok {
			continue
		}

		result := MergeGroupResult{
			Email:        plan.Email,
			Primary:      plan.Primary,
			Duplicates:   plan.Duplicates,
			Roles:        plan.UnionRoles,
			ProfileMoved: plan.Transfer != nil,
		}
		if !opts.DryRun {
			if err = svc.applyMerge(ctx, plan); err != nil {
				result.Err = err
			}
		}
		report.Groups = append(report.Groups, result)
	}
	return report, nil
}

// applyMerge executes a merge plan atomically. Step order matters: the role
// union lands on the primary before any deletion, and the profile is repointed
// before its previous owner is deleted so it cannot be cascade-dropped.
func (svc *service) applyMerge(ctx context.Context, plan MergePlan) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning merge transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = svc.repo.UpdateUserRoles(ctx, plan.Primary.ID, plan.UnionRoles, tx); err != nil {
		return errors.Wrap(err, "attaching roles to primary")
	}
	if plan.Transfer != nil {
		if err = svc.repo.ReassignProfile(ctx, plan.Transfer.ProfileID, plan.Primary.ID, tx); err != nil {
			return errors.Wrap(err, "reassigning profile")
		}
	}
	deleted, err := svc.repo.DeleteUsersByID(ctx, plan.DeleteIDs(), tx)
	if err != nil {
		return errors.Wrap(err, "deleting duplicates")
	}
	if deleted != len(plan.Duplicates) {
		return errors.Errorf("expected to delete %d duplicates, deleted %d", len(plan.Duplicates), deleted)
	}
	return errors.Wrap(tx.Commit(), "committing merge transaction")
}

func memberIDs(g Group) []int {
	ids := make([]int, 0, len(g.Users))
	for _, usr := range g.Users {
		ids = append(ids, usr.ID)
	}
	return ids
}

// String renders a one-line summary for operator output.
func (res MergeGroupResult) String() string {
	if res.Err != nil {
		return fmt.Sprintf("%s: FAILED (%v)", res.Email, res.Err)
	}
	return fmt.Sprintf("%s: keep ID %d, remove %d duplicate(s), roles %v", res.Email, res.Primary.ID, len(res.Duplicates), res.Roles)
}
