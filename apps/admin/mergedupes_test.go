package main

import (
	"context"
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/tutorhub/backend/core"
	"github.com/tutorhub/backend/core/user"
	emailsvc "github.com/tutorhub/backend/services/email"
	testutil "github.com/tutorhub/backend/tests"
)

// failingUserRepository breaks the deletion of one specific user so a merge
// transaction can be made to fail on demand.
type failingUserRepository struct {
	user.Repository
	failID int
}

var errStoreUnavailable = errors.New("store unavailable")

func (repo failingUserRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	for _, id := range ids {
		if id == repo.failID {
			return 0, errStoreUnavailable
		}
	}
	return repo.Repository.DeleteUsersByID(ctx, ids, exec...)
}

func Test_commandLine_mergeDupes(t *testing.T) {
	ctx := context.Background()

	t.Run("oldest account wins and roles are unioned", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Awe Some", "Awe@test.cd", "", []string{user.RoleUser}, true)
		dup := testutil.CreateUser(t, usrRepo, "Awe Some", "awe@test.cd", "", []string{user.RoleContractor}, true)
		other := testutil.CreateUser(t, usrRepo, "By Stander", "by@test.cd", "", nil, true)

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		kept, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if want := []string{user.RoleUser, user.RoleContractor}; !reflect.DeepEqual(kept.Roles, want) {
			t.Errorf("kept.Roles = %v, want %v", kept.Roles, want)
		}
		if kept.Email != "Awe@test.cd" {
			t.Errorf("kept.Email = %s; the primary's stored email must not change", kept.Email)
		}
		if _, err = usrRepo.GetUser(ctx, user.GetFilter{ID: dup.ID}); err != user.ErrNotFound {
			t.Errorf("duplicate still present, err = %v", err)
		}
		if _, err = usrRepo.GetUser(ctx, user.GetFilter{ID: other.ID}); err != nil {
			t.Errorf("unrelated user was touched, err = %v", err)
		}
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Awe Some", "Awe@test.cd", "", []string{user.RoleUser}, true)
		dup := testutil.CreateUser(t, usrRepo, "Awe Some", "awe@test.cd", "", []string{user.RoleContractor}, true)

		if err := cli.run([]string{"admin", "mergedupes", "-dry-run"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		kept, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if !reflect.DeepEqual(kept.Roles, []string{user.RoleUser}) {
			t.Errorf("dry run changed roles: %v", kept.Roles)
		}
		if _, err = usrRepo.GetUser(ctx, user.GetFilter{ID: dup.ID}); err != nil {
			t.Errorf("dry run deleted the duplicate, err = %v", err)
		}
	})

	t.Run("email flag restricts the run to one group", func(t *testing.T) {
		cli := setup(t)
		testutil.CreateUser(t, usrRepo, "Awe Some", "Awe@test.cd", "", nil, true)
		awedup := testutil.CreateUser(t, usrRepo, "Awe Some", "awe@test.cd", "", nil, true)
		testutil.CreateUser(t, usrRepo, "Che Rie", "che@test.cd", "", nil, true)
		chedup := testutil.CreateUser(t, usrRepo, "Che Rie", "CHE@test.cd", "", nil, true)

		// filter match is case-insensitive
		if err := cli.run([]string{"admin", "mergedupes", "-email", "AWE@test.cd"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		if _, err := usrRepo.GetUser(ctx, user.GetFilter{ID: awedup.ID}); err != user.ErrNotFound {
			t.Errorf("filtered group not merged, err = %v", err)
		}
		if _, err := usrRepo.GetUser(ctx, user.GetFilter{ID: chedup.ID}); err != nil {
			t.Errorf("out-of-filter group was touched, err = %v", err)
		}
	})

	t.Run("duplicate's profile moves to a primary without one", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Con Tractor", "con@test.cd", "", []string{user.RoleContractor}, true)
		dup := testutil.CreateUser(t, usrRepo, "Con Tractor", "CON@test.cd", "", []string{user.RoleContractor}, true)
		prof := testutil.CreateProfile(t, usrRepo, dup.ID, "w9.pdf", true)

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		moved, err := usrRepo.GetProfileByOwner(ctx, oldest.ID)
		if err != nil {
			t.Fatalf("GetProfileByOwner() failed, %v", err)
		}
		if moved.ID != prof.ID {
			t.Errorf("moved.ID = %d, want %d", moved.ID, prof.ID)
		}
	})

	t.Run("primary's own profile is kept and the duplicate's dropped", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Con Tractor", "con@test.cd", "", []string{user.RoleContractor}, true)
		dup := testutil.CreateUser(t, usrRepo, "Con Tractor", "CON@test.cd", "", []string{user.RoleContractor}, true)
		kept := testutil.CreateProfile(t, usrRepo, oldest.ID, "w9-old.pdf", true)
		dropped := testutil.CreateProfile(t, usrRepo, dup.ID, "w9-new.pdf", false)

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		prof, err := usrRepo.GetProfileByOwner(ctx, oldest.ID)
		if err != nil {
			t.Fatalf("GetProfileByOwner() failed, %v", err)
		}
		if prof.ID != kept.ID {
			t.Errorf("primary's profile = %d, want %d", prof.ID, kept.ID)
		}
		// the duplicate's profile goes away with its owner
		profs, err := usrRepo.QueryProfilesByOwners(ctx, []int{oldest.ID, dup.ID})
		if err != nil {
			t.Fatalf("QueryProfilesByOwners() failed, %v", err)
		}
		if len(profs) != 1 || profs[0].ID == dropped.ID {
			t.Errorf("expected only profile %d to remain, got %v", kept.ID, profs)
		}
	})

	t.Run("running twice changes nothing more", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Awe Some", "Awe@test.cd", "", []string{user.RoleUser}, true)
		testutil.CreateUser(t, usrRepo, "Awe Some", "awe@test.cd", "", []string{user.RoleContractor}, true)

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		first, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		second, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if !reflect.DeepEqual(first.Roles, second.Roles) {
			t.Errorf("second run changed roles: %v -> %v", first.Roles, second.Roles)
		}

		users, err := usrRepo.QueryUsers(ctx, nil, nil)
		if err != nil {
			t.Fatalf("QueryUsers() failed, %v", err)
		}
		if len(users) != 1 {
			t.Errorf("expected 1 user, got %d", len(users))
		}
	})

	t.Run("a failed group rolls back and the run continues", func(t *testing.T) {
		cli := setup(t)
		// first group: deletion of its duplicate is made to fail
		oldest := testutil.CreateUser(t, usrRepo, "Awe Some", "Awe@test.cd", "", []string{user.RoleUser}, true)
		dup := testutil.CreateUser(t, usrRepo, "Awe Some", "awe@test.cd", "", []string{user.RoleContractor}, true)
		prof := testutil.CreateProfile(t, usrRepo, dup.ID, "w9.pdf", true)
		// second group merges normally
		cheOldest := testutil.CreateUser(t, usrRepo, "Che Rie", "che@test.cd", "", []string{user.RoleParent}, true)
		cheDup := testutil.CreateUser(t, usrRepo, "Che Rie", "CHE@test.cd", "", []string{user.RoleChild}, true)

		conf := testutil.Config(t)
		svc := user.NewServiceMock(
			cli.db,
			failingUserRepository{Repository: usrRepo, failID: dup.ID},
			emailsvc.NewConsoleServiceMock(),
			conf,
		)

		report, err := svc.MergeDuplicateAccounts(ctx, user.MergeOptions{})
		if err != nil {
			t.Fatalf("MergeDuplicateAccounts() error = %v", err)
		}

		// the failed group is reported and the rest of the run completes
		if report.FailedCount() != 1 || report.MergedCount() != 1 {
			t.Errorf("merged/failed = %d/%d, want 1/1", report.MergedCount(), report.FailedCount())
		}
		for _, group := range report.Groups {
			failed := group.Email == "awe@test.cd"
			if failed != (group.Err != nil) {
				t.Errorf("group %s: Err = %v", group.Email, group.Err)
			}
			if failed && !strings.Contains(group.String(), "FAILED") {
				t.Errorf("group summary = %q, want a FAILED line", group.String())
			}
		}

		// the failed group's transaction rolled back: users, roles and profile
		// are exactly as they were
		kept, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if !reflect.DeepEqual(kept.Roles, []string{user.RoleUser}) {
			t.Errorf("failed group's primary roles changed: %v", kept.Roles)
		}
		if _, err = usrRepo.GetUser(ctx, user.GetFilter{ID: dup.ID}); err != nil {
			t.Errorf("failed group's duplicate is gone, err = %v", err)
		}
		stillOwned, err := usrRepo.GetProfileByOwner(ctx, dup.ID)
		if err != nil {
			t.Fatalf("GetProfileByOwner() failed, %v", err)
		}
		if stillOwned.ID != prof.ID {
			t.Errorf("profile owner changed, got profile %d", stillOwned.ID)
		}

		// the other group merged
		cheKept, err := usrRepo.GetUser(ctx, user.GetFilter{ID: cheOldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if want := []string{user.RoleParent, user.RoleChild}; !reflect.DeepEqual(cheKept.Roles, want) {
			t.Errorf("cheKept.Roles = %v, want %v", cheKept.Roles, want)
		}
		if _, err = usrRepo.GetUser(ctx, user.GetFilter{ID: cheDup.ID}); err != user.ErrNotFound {
			t.Errorf("merged group's duplicate still present, err = %v", err)
		}
	})

	t.Run("no duplicates reports none and succeeds", func(t *testing.T) {
		cli := setup(t)
		testutil.CreateUser(t, usrRepo, "So Lo", "solo@test.cd", "", nil, true)
		testutil.CreateUser(t, usrRepo, "Al One", "alone@test.cd", "", nil, true)

		out := captureStdout(t, func() {
			if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
				t.Fatalf("cli.run() error = %v", err)
			}
		})
		if !strings.Contains(out, "no duplicate accounts found") {
			t.Errorf("output = %q, want a 'no duplicate accounts found' line", out)
		}
	})

	t.Run("three-way group keeps the lowest ID", func(t *testing.T) {
		cli := setup(t)
		oldest := testutil.CreateUser(t, usrRepo, "Tri O", "tri@test.cd", "", []string{user.RoleParent}, true)
		mid := testutil.CreateUser(t, usrRepo, "Tri O", "Tri@test.cd", "", []string{user.RoleChild}, true)
		newest := testutil.CreateUser(t, usrRepo, "Tri O", "TRI@test.cd", "", []string{user.RoleUser}, true)

		if err := cli.run([]string{"admin", "mergedupes"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}

		kept, err := usrRepo.GetUser(ctx, user.GetFilter{ID: oldest.ID})
		if err != nil {
			t.Fatalf("GetUser() failed, %v", err)
		}
		if want := []string{user.RoleParent, user.RoleChild, user.RoleUser}; !reflect.DeepEqual(kept.Roles, want) {
			t.Errorf("kept.Roles = %v, want %v", kept.Roles, want)
		}
		for _, id := range []int{mid.ID, newest.ID} {
			if _, err := usrRepo.GetUser(ctx, user.GetFilter{ID: id}); err != user.ErrNotFound {
				t.Errorf("duplicate %d still present, err = %v", id, err)
			}
		}
	})
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("captureStdout() failed: %v", err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	fn()

	_ = w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("captureStdout() failed: %v", err)
	}
	return string(out)
}
