// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/internal/guard"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

// Error codes written by the API in addition to the guard codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidOverride  = "INVALID_OVERRIDE"
	CodeUnknownRole      = "UNKNOWN_ROLE"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ModuleSchema describes one module and its ordered actions.
type ModuleSchema struct {
	Module  access.Module   `json:"module"`
	Actions []access.Action `json:"actions"`
}

// SchemaResponse is the body of GET /v1/schema.
type SchemaResponse struct {
	Roles   []access.Role  `json:"roles"`
	Modules []ModuleSchema `json:"modules"`
}

// PermissionsResponse carries a complete permission set for one user or role.
type PermissionsResponse struct {
	UserID      string               `json:"user_id,omitempty"`
	Role        access.Role          `json:"role"`
	Permissions access.PermissionSet `json:"permissions"`
}

// ViewsResponse is the body of GET /v1/me/views.
type ViewsResponse struct {
	Views []access.ViewID `json:"views"`
}

// CheckResponse is the body of the check endpoints.
type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

// SaveOverrideResponse is the body of PUT /v1/users/{id}/permissions.
type SaveOverrideResponse struct {
	UserID  string   `json:"user_id"`
	Dropped []string `json:"dropped"`
}

// EscalationResponse is the 403 body of PUT /v1/users/{id}/permissions when
// the override grants cells the editor does not hold.
type EscalationResponse struct {
	guard.ErrorResponse
	Cells []string `json:"cells"`
}

type checkQuery struct {
	Module string `validate:"required,max=64"`
	Action string `validate:"required,max=64"`
}

type userPermissionsQuery struct {
	Role string `validate:"required,oneof=portal user admin superuser"`
}

func (h *handler) getSchema(w http.ResponseWriter, _ *http.Request) {
	schema := h.engine.Resolver().Schema()
	resp := SchemaResponse{Roles: access.Roles()}
	for _, m := range schema.Modules() {
		resp.Modules = append(resp.Modules, ModuleSchema{Module: m, Actions: schema.ListActions(m)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getDefaults(w http.ResponseWriter, r *http.Request) {
	role, err := access.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		guard.WriteError(w, http.StatusNotFound, CodeUnknownRole, "unknown role")
		return
	}
	writeJSON(w, http.StatusOK, PermissionsResponse{
		Role:        role,
		Permissions: h.engine.Resolver().Default(role),
	})
}

func (h *handler) getMyPermissions(w http.ResponseWriter, r *http.Request) {
	u, _ := access.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, PermissionsResponse{
		UserID:      u.ID,
		Role:        u.Role,
		Permissions: h.engine.EffectivePermissions(r.Context(), u),
	})
}

func (h *handler) getMyViews(w http.ResponseWriter, r *http.Request) {
	u, _ := access.UserFromContext(r.Context())
	views := h.engine.VisibleViews(r.Context(), u)
	if views == nil {
		views = []access.ViewID{}
	}
	writeJSON(w, http.StatusOK, ViewsResponse{Views: views})
}

func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	q := checkQuery{
		Module: r.URL.Query().Get("module"),
		Action: r.URL.Query().Get("action"),
	}
	if !h.valid(w, q) {
		return
	}
	u, _ := access.UserFromContext(r.Context())
	allowed := h.engine.CanAccess(r.Context(), u, access.Module(q.Module), access.Action(q.Action))
	writeJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}

func (h *handler) checkView(w http.ResponseWriter, r *http.Request) {
	u, _ := access.UserFromContext(r.Context())
	allowed := h.engine.CanAccessView(r.Context(), u, access.ViewID(chi.URLParam(r, "view")))
	writeJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}

func (h *handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	q := userPermissionsQuery{Role: r.URL.Query().Get("role")}
	if !h.valid(w, q) {
		return
	}
	target := access.User{ID: chi.URLParam(r, "id"), Role: access.Role(q.Role)}
	writeJSON(w, http.StatusOK, PermissionsResponse{
		UserID:      target.ID,
		Role:        target.Role,
		Permissions: h.engine.EffectivePermissions(r.Context(), target),
	})
}

func (h *handler) putUserOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		guard.WriteError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "request body too large")
		return
	}
	override, err := access.DecodeOverride(raw)
	if err != nil {
		guard.WriteError(w, http.StatusBadRequest, CodeInvalidOverride, err.Error())
		return
	}
	if cells := h.escalations(r, override); len(cells) > 0 {
		writeJSON(w, http.StatusForbidden, EscalationResponse{
			ErrorResponse: guard.ErrorResponse{
				Error: "cannot grant permissions you do not hold: " + strings.Join(cells, ", "),
				Code:  guard.CodeAccessDenied,
			},
			Cells: cells,
		})
		return
	}
	dropped, err := h.engine.SaveOverride(r.Context(), userID, override)
	if err != nil {
		h.storeError(w, r, "save override failed", userID, err)
		return
	}
	if dropped == nil {
		dropped = []string{}
	}
	writeJSON(w, http.StatusOK, SaveOverrideResponse{UserID: userID, Dropped: dropped})
}

// escalations returns the known cells override sets to true that the editor
// is not allowed, as sorted module.action keys. Superusers hold every cell.
func (h *handler) escalations(r *http.Request, override access.Override) []string {
	editor, _ := access.UserFromContext(r.Context())
	if editor.Role == access.RoleSuperuser {
		return nil
	}
	schema := h.engine.Resolver().Schema()
	held := h.engine.EffectivePermissions(r.Context(), editor)
	var cells []string
	for m, actions := range override {
		for a, granted := range actions {
			if granted && schema.IsKnown(m, a) && !held.Allowed(m, a) {
				cells = append(cells, string(m)+"."+string(a))
			}
		}
	}
	sort.Strings(cells)
	return cells
}

func (h *handler) deleteUserOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := h.engine.ClearOverride(r.Context(), userID); err != nil {
		h.storeError(w, r, "clear override failed", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) storeError(w http.ResponseWriter, r *http.Request, msg, userID string, err error) {
	if errutil.Code(err) == "INVALID_USER_ID" {
		guard.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid user id")
		return
	}
	errutil.LogError(r.Context(), h.logger, msg, err, slog.String("user_id", userID))
	guard.WriteError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "permission store unavailable")
}

// valid validates v and writes a 400 describing the first failing field.
func (h *handler) valid(w http.ResponseWriter, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		guard.WriteError(w, http.StatusBadRequest, CodeInvalidRequest,
			strings.ToLower(fe.Field())+": failed "+fe.Tag()+" validation")
		return false
	}
	guard.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(v)
}
