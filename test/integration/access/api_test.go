// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

//go:build integration

package access_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/assetdesk/assetdesk/internal/access"
	accessstore "github.com/assetdesk/assetdesk/internal/access/store"
	"github.com/assetdesk/assetdesk/internal/api"
	"github.com/assetdesk/assetdesk/internal/guard"
)

var _ = Describe("Access API over Postgres", func() {
	var server *httptest.Server

	BeforeEach(func() {
		env.truncate()
		evaluator := access.NewEvaluator(access.NewDefaultResolver(), accessstore.NewPostgresStore(env.pool))
		server = httptest.NewServer(api.NewRouter(evaluator))
		DeferCleanup(server.Close)
	})

	request := func(method, path, userID string, role access.Role, body string) *http.Response {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set(guard.DefaultUserHeader, userID)
		req.Header.Set(guard.DefaultRoleHeader, string(role))
		resp, err := server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	It("lets an admin grant a portal user a single permission", func() {
		resp := request(http.MethodPut, "/v1/users/u-portal/permissions", "u-admin", access.RoleAdmin,
			`{"tickets":{"close":true}}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp = request(http.MethodGet, "/v1/check?module=tickets&action=close", "u-portal", access.RolePortal, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var check api.CheckResponse
		Expect(json.NewDecoder(resp.Body).Decode(&check)).To(Succeed())
		Expect(check.Allowed).To(BeTrue())
	})

	It("refuses override edits from users without manageRoles", func() {
		resp := request(http.MethodPut, "/v1/users/u-portal/permissions", "u-user", access.RoleUser,
			`{"tickets":{"close":true}}`)
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

		var n int
		Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM user_permission_overrides`).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
	})
})
