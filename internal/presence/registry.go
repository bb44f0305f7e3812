// Package presence holds the authoritative in-memory state of the hub: who is
// connected under which display name and which connections belong to which
// group.
package presence

import (
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type group struct {
	id        GroupID
	name      string
	createdBy ConnID
	members   *orderedSet[ConnID]
}

func (g *group) snapshot() Group {
	return Group{
		ID:        g.id,
		Name:      g.name,
		CreatedBy: g.createdBy,
		Members:   g.members.items(),
	}
}

// Registry is safe for concurrent use. A single mutex guards identities,
// groups and the per-connection membership index, so both directions of
// membership always change in the same critical section.
type Registry struct {
	mu sync.Mutex

	identities    map[ConnID]Identity
	identityOrder *orderedSet[ConnID]

	groups     map[GroupID]*group
	groupOrder *orderedSet[GroupID]

	memberships map[ConnID]*orderedSet[GroupID]
}

func NewRegistry() *Registry {
	return &Registry{
		identities:    make(map[ConnID]Identity),
		identityOrder: newOrderedSet[ConnID](),
		groups:        make(map[GroupID]*group),
		groupOrder:    newOrderedSet[GroupID](),
		memberships:   make(map[ConnID]*orderedSet[GroupID]),
	}
}

// Register creates the identity for connID or replaces its display name.
func (r *Registry) Register(connID ConnID, displayName string) Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := Identity{ID: connID, DisplayName: displayName}
	r.identities[connID] = id
	r.identityOrder.add(connID)
	zap.L().Debug("presence.register", zap.String("conn_id", string(connID)), zap.String("display_name", displayName))
	return id
}

// Unregister drops connID from the registry and from every group it belonged
// to. Calling it for an unknown connection returns the zero Departure.
func (r *Registry) Unregister(connID ConnID) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dep Departure
	if id, ok := r.identities[connID]; ok {
		dep.Identity = id
		dep.Registered = true
		delete(r.identities, connID)
		r.identityOrder.remove(connID)
	}

	if set, ok := r.memberships[connID]; ok {
		for _, gid := range set.items() {
			dep.LeftGroups = append(dep.LeftGroups, gid)
			if r.removeMemberLocked(gid, connID) {
				dep.DeletedGroups = append(dep.DeletedGroups, gid)
			}
		}
	}

	if dep.Registered || len(dep.LeftGroups) > 0 {
		zap.L().Debug("presence.unregister",
			zap.String("conn_id", string(connID)),
			zap.Int("left_groups", len(dep.LeftGroups)),
			zap.Int("deleted_groups", len(dep.DeletedGroups)),
		)
	}
	return dep
}

func (r *Registry) LookupIdentity(connID ConnID) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.identities[connID]
	return id, ok
}

func (r *Registry) LookupDisplayName(connID ConnID) (string, bool) {
	id, ok := r.LookupIdentity(connID)
	return id.DisplayName, ok
}

// AllIdentities lists identities in registration order.
func (r *Registry) AllIdentities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identitiesLocked()
}

func (r *Registry) AllDisplayNames() []string {
	return lo.Map(r.AllIdentities(), func(id Identity, _ int) string { return id.DisplayName })
}

func (r *Registry) CreateGroup(groupID GroupID, name string, creator ConnID) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[groupID]; exists {
		return Group{}, ErrDuplicateGroup
	}
	g := &group{
		id:        groupID,
		name:      name,
		createdBy: creator,
		members:   newOrderedSet[ConnID](),
	}
	r.groups[groupID] = g
	r.groupOrder.add(groupID)
	r.addMemberLocked(g, creator)

	zap.L().Debug("presence.group_created", zap.String("group_id", string(groupID)), zap.String("creator", string(creator)))
	return g.snapshot(), nil
}

// JoinGroup adds connID to the group. Joining twice is not an error.
func (r *Registry) JoinGroup(groupID GroupID, connID ConnID) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	r.addMemberLocked(g, connID)
	return g.snapshot(), nil
}

// LeaveGroup removes connID from the group and reports whether it was a
// member. Missing groups and non-members are ignored.
func (r *Registry) LeaveGroup(groupID GroupID, connID ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok || !g.members.has(connID) {
		return false
	}
	r.removeMemberLocked(groupID, connID)
	return true
}

func (r *Registry) GetGroup(groupID GroupID) (Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return Group{}, false
	}
	return g.snapshot(), true
}

func (r *Registry) IsMember(groupID GroupID, connID ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	return ok && g.members.has(connID)
}

// AllGroups lists groups in creation order.
func (r *Registry) AllGroups() []Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Group, 0, r.groupOrder.len())
	for _, gid := range r.groupOrder.keys {
		out = append(out, r.groups[gid].snapshot())
	}
	return out
}

// GroupsOf lists the groups connID belongs to, in creation order.
func (r *Registry) GroupsOf(connID ConnID) []Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.memberships[connID]
	if !ok {
		return []Group{}
	}
	gids := lo.Filter(r.groupOrder.keys, func(gid GroupID, _ int) bool { return set.has(gid) })
	return lo.Map(gids, func(gid GroupID, _ int) Group { return r.groups[gid].snapshot() })
}

// MembersOf returns the identities of the group's members in join order.
// Members that never registered an identity are skipped.
func (r *Registry) MembersOf(groupID GroupID) []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return []Identity{}
	}
	out := make([]Identity, 0, g.members.len())
	for _, c := range g.members.keys {
		if id, ok := r.identities[c]; ok {
			out = append(out, id)
		}
	}
	return out
}

// MemberConnIDs returns every member connection, registered or not. The
// transport uses it to resolve room deliveries.
func (r *Registry) MemberConnIDs(groupID GroupID) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return nil
	}
	return g.members.items()
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Users: len(r.identities), Groups: len(r.groups)}
}

// ── helpers, caller holds r.mu ───────────────────────────────────────────────

func (r *Registry) identitiesLocked() []Identity {
	out := make([]Identity, 0, r.identityOrder.len())
	for _, c := range r.identityOrder.keys {
		out = append(out, r.identities[c])
	}
	return out
}

func (r *Registry) addMemberLocked(g *group, connID ConnID) {
	if !g.members.add(connID) {
		return
	}
	set, ok := r.memberships[connID]
	if !ok {
		set = newOrderedSet[GroupID]()
		r.memberships[connID] = set
	}
	set.add(g.id)
}

// removeMemberLocked removes both sides of the membership and deletes the
// group once it is empty. It reports whether the group was deleted.
func (r *Registry) removeMemberLocked(groupID GroupID, connID ConnID) bool {
	if set, ok := r.memberships[connID]; ok {
		set.remove(groupID)
		if set.len() == 0 {
			delete(r.memberships, connID)
		}
	}

	g, ok := r.groups[groupID]
	if !ok {
		return false
	}
	g.members.remove(connID)
	if g.members.len() > 0 {
		return false
	}
	delete(r.groups, groupID)
	r.groupOrder.remove(groupID)
	zap.L().Debug("presence.group_deleted", zap.String("group_id", string(groupID)))
	return true
}
