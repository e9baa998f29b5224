// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package npmcli translates queued operations into npm CLI invocations and
// executes them.
//
// The package has two halves:
//
//   - The catalog (this file): a pure, enum-keyed lookup table mapping an
//     operation type plus parameter bag to the concrete argument vector.
//     It never errors and never panics — malformed input resolves to a
//     synthetic failing Invocation the engine records as a failed result.
//   - The executor (executor.go): drives the resolved argv through the npm
//     binary with a bounded timeout and OTP handling.
package npmcli

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/RegistryDeck/pkg/validation"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// Invocation is the catalog's output: either a runnable argument vector
// or an explicit failure sentinel.
type Invocation struct {
	// Args is the npm argument vector, e.g. ["org", "set", "@acme", "bob",
	// "developer"]. Empty when Fail is set.
	Args []string

	// Fail marks a synthetic failing invocation: unknown type, missing
	// param, or an identifier that failed validation. The engine records
	// Reason as the failed result's stderr without contacting the CLI.
	Fail bool

	// Reason is the diagnostic for a failing invocation.
	Reason string
}

// paramCheck validates one named parameter of an operation.
type paramCheck struct {
	key   string
	check func(string) error
}

// catalogEntry describes how one operation type becomes an argv.
type catalogEntry struct {
	params []paramCheck
	build  func(p map[string]string) []string
}

// catalog is the enum-keyed lookup table for all eleven operation types.
//
// `npm org set` both adds a user and changes a role, so org:add-user and
// org:set-role share an argv shape; the distinction matters to the UI and
// the org mirror, not to the CLI.
var catalog = map[string]catalogEntry{
	store.TypeOrgAddUser: {
		params: []paramCheck{
			{"org", validation.OrgName},
			{"user", validation.UserName},
			{"role", validation.Role},
		},
		build: func(p map[string]string) []string {
			return []string{"org", "set", p["org"], p["user"], p["role"]}
		},
	},
	store.TypeOrgRemoveUser: {
		params: []paramCheck{
			{"org", validation.OrgName},
			{"user", validation.UserName},
		},
		build: func(p map[string]string) []string {
			return []string{"org", "rm", p["org"], p["user"]}
		},
	},
	store.TypeOrgSetRole: {
		params: []paramCheck{
			{"org", validation.OrgName},
			{"user", validation.UserName},
			{"role", validation.Role},
		},
		build: func(p map[string]string) []string {
			return []string{"org", "set", p["org"], p["user"], p["role"]}
		},
	},
	store.TypeTeamCreate: {
		params: []paramCheck{
			{"team", validation.ScopeTeam},
		},
		build: func(p map[string]string) []string {
			return []string{"team", "create", p["team"]}
		},
	},
	store.TypeTeamDestroy: {
		params: []paramCheck{
			{"team", validation.ScopeTeam},
		},
		build: func(p map[string]string) []string {
			return []string{"team", "destroy", p["team"]}
		},
	},
	store.TypeTeamAddMember: {
		params: []paramCheck{
			{"team", validation.ScopeTeam},
			{"user", validation.UserName},
		},
		build: func(p map[string]string) []string {
			return []string{"team", "add", p["team"], p["user"]}
		},
	},
	store.TypeTeamRemoveMember: {
		params: []paramCheck{
			{"team", validation.ScopeTeam},
			{"user", validation.UserName},
		},
		build: func(p map[string]string) []string {
			return []string{"team", "rm", p["team"], p["user"]}
		},
	},
	store.TypeAccessGrant: {
		params: []paramCheck{
			{"permission", validation.Permission},
			{"team", validation.ScopeTeam},
			{"package", validation.PackageName},
		},
		build: func(p map[string]string) []string {
			return []string{"access", "grant", p["permission"], p["team"], p["package"]}
		},
	},
	store.TypeAccessRevoke: {
		params: []paramCheck{
			{"team", validation.ScopeTeam},
			{"package", validation.PackageName},
		},
		build: func(p map[string]string) []string {
			return []string{"access", "revoke", p["team"], p["package"]}
		},
	},
	store.TypeOwnerAdd: {
		params: []paramCheck{
			{"user", validation.UserName},
			{"package", validation.PackageName},
		},
		build: func(p map[string]string) []string {
			return []string{"owner", "add", p["user"], p["package"]}
		},
	},
	store.TypeOwnerRemove: {
		params: []paramCheck{
			{"user", validation.UserName},
			{"package", validation.PackageName},
		},
		build: func(p map[string]string) []string {
			return []string{"owner", "rm", p["user"], p["package"]}
		},
	},
}

// Resolve maps an operation type and parameter bag to its CLI invocation.
//
// # Description
//
// Pure translation with no state and no side effects. Unknown types,
// missing parameters, and invalid identifiers resolve to a failing
// Invocation rather than an error — the caller records it as a failed
// result, it never crashes the engine.
//
// # Examples
//
//	inv := npmcli.Resolve("org:add-user", map[string]string{
//	    "org": "@acme", "user": "bob", "role": "developer",
//	})
//	// inv.Args == ["org", "set", "@acme", "bob", "developer"]
func Resolve(opType string, params map[string]string) Invocation {
	entry, ok := catalog[opType]
	if !ok {
		return Invocation{
			Fail:   true,
			Reason: fmt.Sprintf("unknown operation type %q", opType),
		}
	}

	for _, pc := range entry.params {
		v, present := params[pc.key]
		if !present || v == "" {
			return Invocation{
				Fail:   true,
				Reason: fmt.Sprintf("missing required param %q for %s", pc.key, opType),
			}
		}
		if err := pc.check(v); err != nil {
			return Invocation{
				Fail:   true,
				Reason: fmt.Sprintf("param %q: %v", pc.key, err),
			}
		}
	}

	return Invocation{Args: entry.build(params)}
}

// Render returns a display string for an invocation, prefixed with the
// npm binary name. Purely cosmetic; never executed.
func (inv Invocation) Render(bin string) string {
	if inv.Fail {
		return fmt.Sprintf("# unresolvable: %s", inv.Reason)
	}
	return bin + " " + strings.Join(inv.Args, " ")
}
