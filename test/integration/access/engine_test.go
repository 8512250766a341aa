// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

//go:build integration

package access_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/assetdesk/assetdesk/internal/access"
	accessstore "github.com/assetdesk/assetdesk/internal/access/store"
	"github.com/assetdesk/assetdesk/internal/store"
)

var _ = Describe("Postgres-backed evaluator", func() {
	var (
		ctx       context.Context
		evaluator *access.Evaluator
		portal    access.User
		admin     access.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		env.truncate()
		st := accessstore.NewRetryStore(accessstore.NewPostgresStore(env.pool))
		evaluator = access.NewEvaluator(access.NewDefaultResolver(), st)
		portal = access.User{ID: "u-portal", Role: access.RolePortal}
		admin = access.User{ID: "u-admin", Role: access.RoleAdmin}
	})

	Describe("role defaults", func() {
		It("applies the admin row when no override is stored", func() {
			Expect(evaluator.CanAccess(ctx, admin, access.ModuleUsers, access.ActionManageRoles)).To(BeTrue())
			Expect(evaluator.CanAccess(ctx, admin, access.ModuleUsers, access.ActionDelete)).To(BeFalse())
		})
	})

	Describe("overrides", func() {
		It("grants a single cell without touching the rest of the row", func() {
			dropped, err := evaluator.SaveOverride(ctx, portal.ID, access.Override{
				access.ModuleTickets: {access.ActionClose: true},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(dropped).To(BeEmpty())

			Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)).To(BeTrue())
			Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionView)).To(BeTrue())
			Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionDelete)).To(BeFalse())
			Expect(evaluator.CanAccess(ctx, portal, access.ModuleDevices, access.ActionView)).To(BeFalse())
		})

		It("persists only the cells the schema declares", func() {
			dropped, err := evaluator.SaveOverride(ctx, portal.ID, access.Override{
				access.ModuleTickets: {access.ActionClose: true, "teleport": true},
				"billing":            {access.ActionView: true},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(dropped).To(Equal([]string{"billing.view", "tickets.teleport"}))

			var raw []byte
			Expect(env.pool.QueryRow(ctx,
				`SELECT permissions FROM user_permission_overrides WHERE user_id = $1`, portal.ID,
			).Scan(&raw)).To(Succeed())

			var stored map[string]map[string]bool
			Expect(json.Unmarshal(raw, &stored)).To(Succeed())
			Expect(stored).To(Equal(map[string]map[string]bool{"tickets": {"close": true}}))
		})

		It("replaces the previous override on save", func() {
			_, err := evaluator.SaveOverride(ctx, portal.ID, access.Override{access.ModuleTickets: {access.ActionClose: true}})
			Expect(err).NotTo(HaveOccurred())
			_, err = evaluator.SaveOverride(ctx, portal.ID, access.Override{access.ModuleTickets: {access.ActionAssign: true}})
			Expect(err).NotTo(HaveOccurred())

			Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)).To(BeFalse())
			Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionAssign)).To(BeTrue())
		})

		It("restores the role default when cleared", func() {
			_, err := evaluator.SaveOverride(ctx, admin.ID, access.Override{access.ModuleUsers: {access.ActionManageRoles: false}})
			Expect(err).NotTo(HaveOccurred())
			Expect(evaluator.CanAccess(ctx, admin, access.ModuleUsers, access.ActionManageRoles)).To(BeFalse())

			Expect(evaluator.ClearOverride(ctx, admin.ID)).To(Succeed())
			Expect(evaluator.CanAccess(ctx, admin, access.ModuleUsers, access.ActionManageRoles)).To(BeTrue())
		})

		It("never affects superusers", func() {
			root := access.User{ID: "u-root", Role: access.RoleSuperuser}
			_, err := evaluator.SaveOverride(ctx, root.ID, access.DefaultSchema().Full(false))
			Expect(err).NotTo(HaveOccurred())

			Expect(evaluator.CanAccess(ctx, root, access.ModuleSettings, access.ActionSystem)).To(BeTrue())
		})
	})

	Describe("store outage", func() {
		It("falls back to role defaults and reports the failure", func() {
			pool, err := store.OpenPool(ctx, env.connStr)
			Expect(err).NotTo(HaveOccurred())
			pool.Close()

			var failures atomic.Int32
			degraded := access.NewEvaluator(access.NewDefaultResolver(),
				accessstore.NewPostgresStore(pool),
				access.WithStoreErrorHook(func(context.Context, string, error) { failures.Add(1) }))

			Expect(degraded.CanAccess(ctx, admin, access.ModuleUsers, access.ActionManageRoles)).To(BeTrue())
			Expect(degraded.CanAccess(ctx, portal, access.ModuleDevices, access.ActionView)).To(BeFalse())
			Expect(failures.Load()).To(BeNumerically("==", 2))
		})
	})

	Describe("concurrent use", func() {
		It("answers consistently while overrides change", func() {
			const users = 20
			var wg sync.WaitGroup
			for i := 0; i < users; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					u := access.User{ID: fmt.Sprintf("u-%d", i), Role: access.RolePortal}
					_, err := evaluator.SaveOverride(ctx, u.ID, access.Override{access.ModuleDevices: {access.ActionView: true}})
					Expect(err).NotTo(HaveOccurred())
					Expect(evaluator.CanAccess(ctx, u, access.ModuleDevices, access.ActionView)).To(BeTrue())
					Expect(evaluator.CanAccess(ctx, u, access.ModuleDevices, access.ActionDelete)).To(BeFalse())
				}(i)
			}
			wg.Wait()

			var count int
			Expect(env.pool.QueryRow(ctx, `SELECT count(*) FROM user_permission_overrides`).Scan(&count)).To(Succeed())
			Expect(count).To(Equal(users))
		})
	})
})
