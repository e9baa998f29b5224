// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"sort"
	"sync"

	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// Mirror is the connector's in-memory projection of registry org, team,
// and access state, updated from completed operations only.
//
// The mirror is a UI and testing convenience: it reflects what the queue
// has done this process lifetime, NOT the registry's actual state, and is
// never consulted by the engine when deciding what to run. Treat it as a
// cache of optimistic local knowledge.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Mirror struct {
	mu sync.Mutex

	// orgUsers: org → user → role
	orgUsers map[string]map[string]string

	// teamMembers: scope:team → set of users
	teamMembers map[string]map[string]bool

	// access: package → scope:team → permission
	access map[string]map[string]string

	// owners: package → set of users
	owners map[string]map[string]bool
}

// MirrorSnapshot is the JSON shape served by GET /mirror. Member lists
// are sorted for deterministic output.
type MirrorSnapshot struct {
	// Orgs maps org → user → role.
	Orgs map[string]map[string]string `json:"orgs"`

	// Teams maps scope:team → sorted member list.
	Teams map[string][]string `json:"teams"`

	// Access maps package → scope:team → permission.
	Access map[string]map[string]string `json:"access"`

	// Owners maps package → sorted owner list.
	Owners map[string][]string `json:"owners"`
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		orgUsers:    make(map[string]map[string]string),
		teamMembers: make(map[string]map[string]bool),
		access:      make(map[string]map[string]string),
		owners:      make(map[string]map[string]bool),
	}
}

// Apply projects one completed operation onto the mirror.
//
// Unknown types are ignored: the mirror degrades to "less knowledge",
// never to an error. Callers only pass operations with StatusCompleted.
func (m *Mirror) Apply(op *store.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := op.Params
	switch op.Type {
	case store.TypeOrgAddUser, store.TypeOrgSetRole:
		org, user, role := p["org"], p["user"], p["role"]
		if m.orgUsers[org] == nil {
			m.orgUsers[org] = make(map[string]string)
		}
		m.orgUsers[org][user] = role

	case store.TypeOrgRemoveUser:
		delete(m.orgUsers[p["org"]], p["user"])

	case store.TypeTeamCreate:
		team := p["team"]
		if m.teamMembers[team] == nil {
			m.teamMembers[team] = make(map[string]bool)
		}

	case store.TypeTeamDestroy:
		team := p["team"]
		delete(m.teamMembers, team)
		// A destroyed team's grants are gone with it.
		for pkg := range m.access {
			delete(m.access[pkg], team)
		}

	case store.TypeTeamAddMember:
		team := p["team"]
		if m.teamMembers[team] == nil {
			m.teamMembers[team] = make(map[string]bool)
		}
		m.teamMembers[team][p["user"]] = true

	case store.TypeTeamRemoveMember:
		delete(m.teamMembers[p["team"]], p["user"])

	case store.TypeAccessGrant:
		pkg := p["package"]
		if m.access[pkg] == nil {
			m.access[pkg] = make(map[string]string)
		}
		m.access[pkg][p["team"]] = p["permission"]

	case store.TypeAccessRevoke:
		delete(m.access[p["package"]], p["team"])

	case store.TypeOwnerAdd:
		pkg := p["package"]
		if m.owners[pkg] == nil {
			m.owners[pkg] = make(map[string]bool)
		}
		m.owners[pkg][p["user"]] = true

	case store.TypeOwnerRemove:
		delete(m.owners[p["package"]], p["user"])
	}
}

// Snapshot returns a deep copy of the projection.
func (m *Mirror) Snapshot() MirrorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MirrorSnapshot{
		Orgs:   make(map[string]map[string]string, len(m.orgUsers)),
		Teams:  make(map[string][]string, len(m.teamMembers)),
		Access: make(map[string]map[string]string, len(m.access)),
		Owners: make(map[string][]string, len(m.owners)),
	}

	for org, users := range m.orgUsers {
		cp := make(map[string]string, len(users))
		for u, r := range users {
			cp[u] = r
		}
		snap.Orgs[org] = cp
	}
	for team, members := range m.teamMembers {
		snap.Teams[team] = sortedKeys(members)
	}
	for pkg, grants := range m.access {
		cp := make(map[string]string, len(grants))
		for t, perm := range grants {
			cp[t] = perm
		}
		snap.Access[pkg] = cp
	}
	for pkg, users := range m.owners {
		snap.Owners[pkg] = sortedKeys(users)
	}
	return snap
}

// Reset clears the projection. Test-endpoint only.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgUsers = make(map[string]map[string]string)
	m.teamMembers = make(map[string]map[string]bool)
	m.access = make(map[string]map[string]string)
	m.owners = make(map[string]map[string]bool)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
