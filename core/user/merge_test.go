package user

import (
	"reflect"
	"testing"
)

func Test_GroupByEmail(t *testing.T) {
	users := []User{
		{ID: 5, Email: "awe@test.cd"},
		{ID: 1, Email: "Awe@test.cd"},
		{ID: 2, Email: "che@test.cd"},
		{ID: 3, Email: " CHE@test.cd "},
		{ID: 4, Email: "solo@test.cd"},
	}

	t.Run("partitions case-insensitively, members ID ascending", func(t *testing.T) {
		groups := GroupByEmail(users, "")
		if len(groups) != 3 {
			t.Fatalf("len(groups) = %d, want 3", len(groups))
		}
		if groups[0].Email != "awe@test.cd" || groups[1].Email != "che@test.cd" || groups[2].Email != "solo@test.cd" {
			t.Errorf("unexpected group order: %v, %v, %v", groups[0].Email, groups[1].Email, groups[2].Email)
		}
		if ids := memberIDsOf(groups[0]); !reflect.DeepEqual(ids, []int{1, 5}) {
			t.Errorf("awe group IDs = %v, want [1 5]", ids)
		}
		if !groups[0].HasDuplicates() || groups[2].HasDuplicates() {
			t.Error("HasDuplicates() mismatch")
		}
	})

	t.Run("email filter keeps the matching group only", func(t *testing.T) {
		groups := GroupByEmail(users, "AWE@test.cd")
		if len(groups) != 1 {
			t.Fatalf("len(groups) = %d, want 1", len(groups))
		}
		if groups[0].Email != "awe@test.cd" {
			t.Errorf("groups[0].Email = %s, want awe@test.cd", groups[0].Email)
		}
	})

	t.Run("no users, no groups", func(t *testing.T) {
		if groups := GroupByEmail(nil, ""); len(groups) != 0 {
			t.Errorf("len(groups) = %d, want 0", len(groups))
		}
	})
}

func memberIDsOf(g Group) []int {
	ids := make([]int, 0, len(g.Users))
	for _, usr := range g.Users {
		ids = append(ids, usr.ID)
	}
	return ids
}

func Test_PlanMerge(t *testing.T) {
	t.Run("nothing to merge", func(t *testing.T) {
		g := Group{Email: "solo@test.cd", Users: []User{{ID: 1, Email: "solo@test.cd"}}}
		if _, ok := PlanMerge(g, nil); ok {
			t.Error("PlanMerge() ok = true, want false")
		}
	})

	t.Run("lowest ID wins, roles unioned in ID order", func(t *testing.T) {
		g := Group{Email: "awe@test.cd", Users: []User{
			{ID: 1, Email: "Awe@test.cd", Roles: []string{RoleUser}},
			{ID: 5, Email: "awe@test.cd", Roles: []string{RoleContractor, RoleUser}},
			{ID: 9, Email: "AWE@test.cd", Roles: []string{RoleParent}},
		}}
		plan, ok := PlanMerge(g, nil)
		if !ok {
			t.Fatal("PlanMerge() ok = false, want true")
		}
		if plan.Primary.ID != 1 {
			t.Errorf("Primary.ID = %d, want 1", plan.Primary.ID)
		}
		if !reflect.DeepEqual(plan.DeleteIDs(), []int{5, 9}) {
			t.Errorf("DeleteIDs() = %v, want [5 9]", plan.DeleteIDs())
		}
		if want := []string{RoleUser, RoleContractor, RoleParent}; !reflect.DeepEqual(plan.UnionRoles, want) {
			t.Errorf("UnionRoles = %v, want %v", plan.UnionRoles, want)
		}
		if want := []string{RoleContractor, RoleParent}; !reflect.DeepEqual(plan.RolesToAdd, want) {
			t.Errorf("RolesToAdd = %v, want %v", plan.RolesToAdd, want)
		}
		if plan.Transfer != nil {
			t.Errorf("Transfer = %v, want nil", plan.Transfer)
		}
	})

	t.Run("transfer scheduled when primary lacks a profile", func(t *testing.T) {
		g := Group{Email: "con@test.cd", Users: []User{
			{ID: 2, Email: "con@test.cd"},
			{ID: 4, Email: "Con@test.cd"},
			{ID: 6, Email: "CON@test.cd"},
		}}
		profiles := map[int]Profile{
			4: {ID: 40, UserID: 4},
			6: {ID: 60, UserID: 6},
		}
		plan, ok := PlanMerge(g, profiles)
		if !ok {
			t.Fatal("PlanMerge() ok = false, want true")
		}
		// the lowest-ID duplicate's profile wins
		if plan.Transfer == nil || plan.Transfer.ProfileID != 40 || plan.Transfer.FromUserID != 4 {
			t.Errorf("Transfer = %+v, want {ProfileID: 40, FromUserID: 4}", plan.Transfer)
		}
	})

	t.Run("no transfer when primary already owns a profile", func(t *testing.T) {
		g := Group{Email: "con@test.cd", Users: []User{
			{ID: 2, Email: "con@test.cd"},
			{ID: 4, Email: "Con@test.cd"},
		}}
		profiles := map[int]Profile{
			2: {ID: 20, UserID: 2},
			4: {ID: 40, UserID: 4},
		}
		plan, ok := PlanMerge(g, profiles)
		if !ok {
			t.Fatal("PlanMerge() ok = false, want true")
		}
		if plan.Transfer != nil {
			t.Errorf("Transfer = %+v, want nil", plan.Transfer)
		}
	})
}
