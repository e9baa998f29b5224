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

import "github.com/AleutianAI/RegistryDeck/services/connector/store"

// visit colors for the dependency walk.
const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // done
)

// orderByDependency topologically orders the selected operations so that
// every operation appears after the operation it depends on, when that
// dependency is also in the selection. Dependencies outside the selection
// do not affect ordering; the engine re-checks their completion at run
// time. Ties keep insertion order.
//
// The walk is an explicit three-color DFS with a visited set, so it
// terminates on any input. Operations on a dependsOn cycle cannot be
// ordered at all: they are excluded from the result and returned in
// cyclic, leaving them approved-but-unrunnable until the operator breaks
// the cycle by removing a member.
func orderByDependency(selected []*store.Operation) (ordered []*store.Operation, cyclic []*store.Operation) {
	byID := make(map[string]*store.Operation, len(selected))
	for _, op := range selected {
		byID[op.ID] = op
	}

	color := make(map[string]int, len(selected))
	inCycle := make(map[string]bool)

	var visit func(op *store.Operation, path []string) bool
	visit = func(op *store.Operation, path []string) bool {
		switch color[op.ID] {
		case colorBlack:
			return !inCycle[op.ID]
		case colorGray:
			// Back edge: everything from the first occurrence of op.ID on
			// the current path is part of the cycle.
			start := 0
			for i, id := range path {
				if id == op.ID {
					start = i
					break
				}
			}
			for _, id := range path[start:] {
				inCycle[id] = true
			}
			return false
		}

		color[op.ID] = colorGray
		ok := true
		if dep, present := byID[op.DependsOn]; present && dep.ID != op.ID {
			if !visit(dep, append(path, op.ID)) {
				// A dependency chain into a cycle is itself unrunnable
				// within this batch ordering only if the op was marked;
				// ops that merely point at a cycle stay orderable — the
				// runtime completed-check will skip them.
				ok = !inCycle[op.ID]
			}
		} else if op.DependsOn == op.ID && op.DependsOn != "" {
			// Self-dependency is the degenerate cycle.
			inCycle[op.ID] = true
			ok = false
		}
		color[op.ID] = colorBlack

		if ok && !inCycle[op.ID] {
			ordered = append(ordered, op)
			return true
		}
		return false
	}

	for _, op := range selected {
		if color[op.ID] == colorWhite {
			visit(op, nil)
		}
	}

	for _, op := range selected {
		if inCycle[op.ID] {
			cyclic = append(cyclic, op)
		}
	}
	return ordered, cyclic
}
