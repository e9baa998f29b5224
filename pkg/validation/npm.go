// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for npm-shaped identifiers.
//
// Every parameter that ends up in an npm CLI argument vector passes through
// this package first. The validators serve two purposes:
//
//  1. Reject identifiers that the registry would refuse anyway (bad package
//     names, malformed scope:team pairs), failing fast with a useful message.
//  2. Keep caller-supplied values from smuggling CLI flags into argv: a
//     param value beginning with "-" would otherwise be parsed by the npm
//     CLI as an option rather than a positional argument.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

// ErrInvalidIdentifier is the sentinel wrapped by every validator failure.
// Callers match it with errors.Is.
var ErrInvalidIdentifier = fmt.Errorf("invalid identifier")

// =============================================================================
// Patterns
// =============================================================================

// npm package names: optional @scope/ prefix, then lowercase URL-safe name.
// This follows the modern registry rules (no uppercase, no leading dot or
// underscore) rather than the legacy grandfathered set.
var packageNamePattern = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._-]*\/)?[a-z0-9][a-z0-9._-]*$`)

// Org names as accepted by `npm org`: with or without the leading @.
var orgNamePattern = regexp.MustCompile(`^@?[a-z0-9][a-z0-9._-]*$`)

// Registry usernames: lowercase URL-safe, no slashes.
var userNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// scope:team compound identifiers, e.g. "@acme:publishers".
var scopeTeamPattern = regexp.MustCompile(`^@?[a-z0-9][a-z0-9._-]*:[a-z0-9][a-z0-9._-]*$`)

// validRoles are the org membership roles the registry accepts.
var validRoles = map[string]bool{
	"developer": true,
	"admin":     true,
	"owner":     true,
}

// validPermissions are the package access levels `npm access grant` accepts.
var validPermissions = map[string]bool{
	"read-only":  true,
	"read-write": true,
}

// =============================================================================
// Validators
// =============================================================================

// PackageName validates an npm package name, scoped or unscoped.
//
// # Examples
//
//	validation.PackageName("lodash")          // nil
//	validation.PackageName("@acme/tooling")   // nil
//	validation.PackageName("--registry=evil") // ErrInvalidIdentifier
func PackageName(name string) error {
	if err := safeArg(name); err != nil {
		return err
	}
	if len(name) > 214 {
		return fmt.Errorf("%w: package name %q exceeds 214 characters", ErrInvalidIdentifier, name)
	}
	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid npm package name", ErrInvalidIdentifier, name)
	}
	return nil
}

// OrgName validates an organization name, with or without the leading @.
func OrgName(name string) error {
	if err := safeArg(name); err != nil {
		return err
	}
	if !orgNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid org name", ErrInvalidIdentifier, name)
	}
	return nil
}

// UserName validates a registry username.
func UserName(name string) error {
	if err := safeArg(name); err != nil {
		return err
	}
	if !userNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid registry username", ErrInvalidIdentifier, name)
	}
	return nil
}

// ScopeTeam validates a compound scope:team identifier such as
// "@acme:publishers". The leading @ is optional, matching the npm CLI.
func ScopeTeam(name string) error {
	if err := safeArg(name); err != nil {
		return err
	}
	if !scopeTeamPattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid scope:team identifier", ErrInvalidIdentifier, name)
	}
	return nil
}

// Role validates an org membership role (developer, admin, owner).
func Role(role string) error {
	if !validRoles[role] {
		return fmt.Errorf("%w: role %q must be one of developer, admin, owner", ErrInvalidIdentifier, role)
	}
	return nil
}

// Permission validates a package access level (read-only, read-write).
func Permission(perm string) error {
	if !validPermissions[perm] {
		return fmt.Errorf("%w: permission %q must be read-only or read-write", ErrInvalidIdentifier, perm)
	}
	return nil
}

// safeArg rejects values that the CLI would parse as flags or that would
// break argument boundaries. Applied before every shape check.
func safeArg(v string) error {
	if v == "" {
		return fmt.Errorf("%w: value is empty", ErrInvalidIdentifier)
	}
	if strings.HasPrefix(v, "-") {
		return fmt.Errorf("%w: %q must not begin with '-'", ErrInvalidIdentifier, v)
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return fmt.Errorf("%w: %q must not contain whitespace", ErrInvalidIdentifier, v)
	}
	return nil
}
