// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

//go:build integration

package access_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/assetdesk/assetdesk/internal/access"
	accessstore "github.com/assetdesk/assetdesk/internal/access/store"
)

var _ = Describe("Override cache with LISTEN/NOTIFY", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		cache     *accessstore.CachedStore
		evaluator *access.Evaluator
		portal    access.User
	)

	BeforeEach(func() {
		env.truncate()
		ctx, cancel = context.WithCancel(context.Background())
		cache = accessstore.NewCachedStore(accessstore.NewPostgresStore(env.pool),
			accessstore.WithCacheTTL(time.Hour))
		cache.Watch(ctx, accessstore.NewPgListener(env.connStr))
		evaluator = access.NewEvaluator(access.NewDefaultResolver(), cache)
		portal = access.User{ID: "u-portal", Role: access.RolePortal}
	})

	AfterEach(func() {
		cancel()
		cache.Wait()
	})

	It("sees writes made by another process", func() {
		Expect(evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)).To(BeFalse())

		// Another instance writes straight to the table.
		_, err := env.pool.Exec(ctx,
			`INSERT INTO user_permission_overrides (user_id, permissions) VALUES ($1, $2)`,
			portal.ID, `{"tickets":{"close":true}}`)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() bool {
			return evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)
		}).WithTimeout(5 * time.Second).WithPolling(50 * time.Millisecond).Should(BeTrue())
	})

	It("purges everything on truncate", func() {
		other := accessstore.NewPostgresStore(env.pool)
		Expect(other.SaveOverride(ctx, portal.ID, access.Override{
			access.ModuleTickets: {access.ActionClose: true},
		})).To(Succeed())

		Eventually(func() bool {
			return evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)
		}).WithTimeout(5 * time.Second).WithPolling(50 * time.Millisecond).Should(BeTrue())

		env.truncate()

		Eventually(func() bool {
			return evaluator.CanAccess(ctx, portal, access.ModuleTickets, access.ActionClose)
		}).WithTimeout(5 * time.Second).WithPolling(50 * time.Millisecond).Should(BeFalse())
	})
})
