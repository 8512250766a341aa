// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package access decides whether a user may perform an action on a module of
// the AssetDesk dashboard.
//
// Permissions are a fixed catalog of (module, action) pairs declared by a
// Schema. Each Role has a complete default row in the PolicyTable; a user may
// additionally carry a sparse Override persisted by an OverrideStore. The
// Resolver patches the override over the role default cell by cell, and the
// Evaluator is the query surface used by guards and view routers:
//
//	ev := access.NewEvaluator(access.NewDefaultResolver(), store)
//	if ev.CanAccess(ctx, user, access.ModuleTickets, access.ActionAssign) { ... }
//
// Decisions are fail-closed: absent cells, unknown modules, unknown actions and
// unknown views are denials. Superusers bypass every lookup.
package access
