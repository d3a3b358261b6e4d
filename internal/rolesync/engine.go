package rolesync

import (
	"sort"

	"github.com/rankbridge/rankbridge/internal/bindings"
)

// Ranks maps group id to the member's standing in that group. Absent groups
// mean the member is not in them; rank 0 (guest) never matches a binding.
type Ranks map[int64]GroupRank

// GroupRank is the member's rank number and role name in one group.
type GroupRank struct {
	Rank int
	Name string
}

// ComputePlan diffs the member's current roles against what the bindings say
// they should hold. Only roles referenced by some binding are considered
// managed; everything else is left alone.
func ComputePlan(member Member, rankBindings []bindings.RankBinding, groupBindings []bindings.GroupBinding, ranks Ranks) Plan {
	managed := make(map[string]struct{})
	allowed := make(map[string]struct{})
	var matched []Matched

	for _, b := range rankBindings {
		managed[b.DiscordRoleID] = struct{}{}
		standing, in := ranks[b.GroupID]
		if !in || standing.Rank != b.Rank {
			continue
		}
		allowed[b.DiscordRoleID] = struct{}{}
		matched = append(matched, Matched{
			RoleID:   b.DiscordRoleID,
			Priority: b.Priority,
			Template: b.NicknameTemplate,
			RankName: b.RankName,
			order:    b.ID,
		})
	}
	for _, b := range groupBindings {
		managed[b.DiscordRoleID] = struct{}{}
		standing, in := ranks[b.GroupID]
		if !in || standing.Rank <= 0 {
			continue
		}
		allowed[b.DiscordRoleID] = struct{}{}
		// Group bindings store no rank name; the member's live role name
		// in that group fills the template instead.
		matched = append(matched, Matched{
			RoleID:    b.DiscordRoleID,
			Priority:  b.Priority,
			Template:  b.NicknameTemplate,
			RankName:  standing.Name,
			GroupWide: true,
			order:     b.ID,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		if matched[i].GroupWide != matched[j].GroupWide {
			return !matched[i].GroupWide
		}
		return matched[i].order < matched[j].order
	})

	current := make(map[string]struct{}, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		current[id] = struct{}{}
	}

	var plan Plan
	plan.Matched = matched
	seen := make(map[string]struct{})
	for _, m := range matched {
		if _, dup := seen[m.RoleID]; dup {
			continue
		}
		seen[m.RoleID] = struct{}{}
		if _, has := current[m.RoleID]; !has {
			plan.RolesToAdd = append(plan.RolesToAdd, m.RoleID)
		}
	}
	// Removals only come from the managed set. Deterministic order keeps
	// repeated runs byte-identical.
	var remove []string
	for _, id := range member.RoleIDs {
		if _, isManaged := managed[id]; !isManaged {
			continue
		}
		if _, ok := allowed[id]; !ok {
			remove = append(remove, id)
		}
	}
	plan.RolesToRemove = remove

	return plan
}

// DistinctGroups returns the group ids referenced by either binding table, so
// the caller issues one membership query per group.
func DistinctGroups(rankBindings []bindings.RankBinding, groupBindings []bindings.GroupBinding) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, b := range rankBindings {
		if _, ok := seen[b.GroupID]; !ok {
			seen[b.GroupID] = struct{}{}
			out = append(out, b.GroupID)
		}
	}
	for _, b := range groupBindings {
		if _, ok := seen[b.GroupID]; !ok {
			seen[b.GroupID] = struct{}{}
			out = append(out, b.GroupID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
