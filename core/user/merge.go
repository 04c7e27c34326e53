package user

import (
	"sort"
	"strings"
)

// Duplicate accounts are users sharing an email up to letter case. They mostly
// come from the legacy import where the same parent registered twice with a
// differently-cased address. Grouping and planning below are pure so a dry run
// can share the exact code path that a real merge takes.

// NormalizeEmail lowers an email for duplicate detection. Stored emails keep
// their original case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Group holds all users sharing a normalized email, ordered by ID ascending.
type Group struct {
	Email string // normalized
	Users []User
}

// HasDuplicates reports whether the group needs a merge.
func (g Group) HasDuplicates() bool { return len(g.Users) > 1 }

// GroupByEmail partitions users by normalized email, preserving first-seen
// group order. Within a group, users are ordered by ID ascending. When
// onlyEmail is non-empty, only the matching group is returned (compared
// case-insensitively); otherwise every user lands in exactly one group.
func GroupByEmail(users []User, onlyEmail string) []Group {
	onlyEmail = NormalizeEmail(onlyEmail)

	var order []string
	byEmail := make(map[string][]User)
	for _, usr := range users {
		email := NormalizeEmail(usr.Email)
		if onlyEmail != "" && email != onlyEmail {
			continue
		}
		if _, ok := byEmail[email]; !ok {
			order = append(order, email)
		}
		byEmail[email] = append(byEmail[email], usr)
	}

	groups := make([]Group, 0, len(order))
	for _, email := range order {
		members := byEmail[email]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		groups = append(groups, Group{Email: email, Users: members})
	}
	return groups
}

// ProfileTransfer schedules repointing a duplicate's profile to the primary.
type ProfileTransfer struct {
	ProfileID  int
	FromUserID int
}

// MergePlan is the computed outcome of merging one duplicate group. It performs
// no mutation; the executor applies it atomically.
type MergePlan struct {
	Email      string // normalized
	Primary    User
	Duplicates []User   // ID ascending, all to be deleted
	UnionRoles []string // primary's roles first, then the duplicates' in ID order
	RolesToAdd []string // UnionRoles minus the primary's current roles, sorted
	Transfer   *ProfileTransfer
}

// DeleteIDs lists the non-primary identities, ID ascending.
func (p MergePlan) DeleteIDs() []int {
	ids := make([]int, 0, len(p.Duplicates))
	for _, usr := range p.Duplicates {
		ids = append(ids, usr.ID)
	}
	return ids
}

// PlanMerge computes the merge plan for one duplicate group. The primary is
// the member with the lowest ID (oldest account wins). profilesByUser maps
// owner ID to their profile, for the members that own one. The second return
// is false when the group has nothing to merge.
//
// A profile transfer is scheduled only when the primary owns no profile and
// some duplicate does; the lowest-ID duplicate's profile wins. Profiles of the
// remaining duplicates are left to cascade away with their owners, never
// overwriting the primary's.
func PlanMerge(g Group, profilesByUser map[int]Profile) (MergePlan, bool) {
	if !g.HasDuplicates() {
		return MergePlan{}, false
	}

	members := make([]User, len(g.Users))
	copy(members, g.Users)
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	primary := members[0]
	duplicates := members[1:]

	roleSets := make([][]string, 0, len(members))
	for _, usr := range members {
		roleSets = append(roleSets, usr.Roles)
	}
	union := UnionRoles(roleSets...)

	plan := MergePlan{
		Email:      g.Email,
		Primary:    primary,
		Duplicates: duplicates,
		UnionRoles: union,
		RolesToAdd: SubtractRoles(union, primary.Roles),
	}

	if _, ok := profilesByUser[primary.ID]; !ok {
		for _, dup := range duplicates {
			if prof, ok := profilesByUser[dup.ID]; ok {
				plan.Transfer = &ProfileTransfer{ProfileID: prof.ID, FromUserID: dup.ID}
				break
			}
		}
	}
	return plan, true
}
