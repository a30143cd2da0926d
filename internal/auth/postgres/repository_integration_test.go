// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/internal/auth/postgres"
)

var _ = Describe("Credential store", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
		orgs  *postgres.OrganizationRepository
		user  *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx)
		users = postgres.NewUserRepository(testPool)
		orgs = postgres.NewOrganizationRepository(testPool)

		org := &auth.Organization{Name: "Acme", CreatedAt: time.Now()}
		Expect(orgs.Create(ctx, org)).To(Succeed())

		var err error
		user, err = auth.NewUser("a@x.com", "hash", org.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, user)).To(Succeed())
		Expect(user.ID).To(BeNumerically(">", 0))
	})

	Describe("UserRepository", func() {
		It("round-trips a user by email", func() {
			got, err := users.GetByEmail(ctx, "a@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
			Expect(got.Role).To(Equal(auth.RoleAdmin))
			Expect(got.IsVerified).To(BeFalse())
			Expect(got.LockedUntil).To(BeNil())
		})

		It("matches email exactly", func() {
			_, err := users.GetByEmail(ctx, "A@X.COM")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rejects a duplicate email", func() {
			dup, err := auth.NewUser("a@x.com", "hash2", user.OrganizationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(users.Create(ctx, dup)).To(MatchError(auth.ErrDuplicate))
		})

		It("locks exactly when the threshold is reached", func() {
			lockUntil := time.Now().Add(auth.LockoutDuration).UTC().Truncate(time.Microsecond)
			for i := 1; i < auth.LockoutThreshold; i++ {
				f, err := users.RecordLoginFailure(ctx, user.ID, auth.LockoutThreshold, lockUntil)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.FailedAttempts).To(Equal(i))
				Expect(f.LockedUntil).To(BeNil())
			}

			f, err := users.RecordLoginFailure(ctx, user.ID, auth.LockoutThreshold, lockUntil)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.FailedAttempts).To(Equal(auth.LockoutThreshold))
			Expect(f.LockedUntil).NotTo(BeNil())
			Expect(f.LockedUntil.Equal(lockUntil)).To(BeTrue())

			Expect(users.RecordLoginSuccess(ctx, user.ID)).To(Succeed())
			got, err := users.GetByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FailedAttempts).To(BeZero())
			Expect(got.LockedUntil).To(BeNil())
		})

		It("never loses a concurrent failure", func() {
			lockUntil := time.Now().Add(auth.LockoutDuration)
			const workers = 20

			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := users.RecordLoginFailure(ctx, user.ID, auth.LockoutThreshold, lockUntil)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			got, err := users.GetByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FailedAttempts).To(Equal(workers))
			Expect(got.LockedUntil).NotTo(BeNil())
		})

		It("clears lockout when the password changes", func() {
			_, err := users.RecordLoginFailure(ctx, user.ID, 1, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())

			Expect(users.UpdatePassword(ctx, user.ID, "newhash")).To(Succeed())
			got, err := users.GetByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("newhash"))
			Expect(got.LockedUntil).To(BeNil())
		})

		It("marks a user verified", func() {
			Expect(users.MarkVerified(ctx, user.ID)).To(Succeed())
			got, err := users.GetByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsVerified).To(BeTrue())
			Expect(users.MarkVerified(ctx, user.ID+1000)).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("OrganizationRepository", func() {
		It("returns the oldest organization first", func() {
			second := &auth.Organization{Name: "Later", CreatedAt: time.Now()}
			Expect(orgs.Create(ctx, second)).To(Succeed())

			first, err := orgs.First(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Name).To(Equal("Acme"))
		})
	})

	Describe("RefreshTokenRepository", func() {
		It("stores, deletes and prunes tokens", func() {
			issuer, err := auth.NewTokenIssuer("access", "refresh")
			Expect(err).NotTo(HaveOccurred())
			issued, err := issuer.IssueRefreshToken(user.Identity())
			Expect(err).NotTo(HaveOccurred())
			row, err := auth.NewRefreshToken(user.ID, issued)
			Expect(err).NotTo(HaveOccurred())

			repo := postgres.NewRefreshTokenRepository(testPool)
			Expect(repo.Create(ctx, row)).To(Succeed())
			Expect(repo.Create(ctx, row)).To(MatchError(auth.ErrDuplicate))

			n, err := repo.DeleteExpired(ctx, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			Expect(repo.DeleteByTokenHash(ctx, row.TokenHash)).To(Succeed())
			Expect(repo.DeleteByTokenHash(ctx, row.TokenHash)).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("one-time tokens", func() {
		It("consumes a verification exactly once", func() {
			_, hash, err := auth.GenerateOneTimeToken()
			Expect(err).NotTo(HaveOccurred())
			v, err := auth.NewEmailVerification(user.ID, hash, time.Now().Add(auth.EmailVerificationExpiry))
			Expect(err).NotTo(HaveOccurred())

			repo := postgres.NewEmailVerificationRepository(testPool)
			Expect(repo.Create(ctx, v)).To(Succeed())

			got, err := repo.GetByTokenHash(ctx, hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(v.ID))
			Expect(got.UserID).To(Equal(user.ID))

			Expect(repo.Delete(ctx, v.ID)).To(Succeed())
			Expect(repo.Delete(ctx, v.ID)).To(MatchError(auth.ErrNotFound))
		})

		It("prunes expired resets and deletes by user", func() {
			repo := postgres.NewPasswordResetRepository(testPool)

			_, expiredHash, err := auth.GenerateOneTimeToken()
			Expect(err).NotTo(HaveOccurred())
			expired, err := auth.NewPasswordReset(user.ID, expiredHash, time.Now().Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Create(ctx, expired)).To(Succeed())

			_, liveHash, err := auth.GenerateOneTimeToken()
			Expect(err).NotTo(HaveOccurred())
			live, err := auth.NewPasswordReset(user.ID, liveHash, time.Now().Add(auth.PasswordResetExpiry))
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Create(ctx, live)).To(Succeed())

			n, err := repo.DeleteExpired(ctx, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			Expect(repo.DeleteByUser(ctx, user.ID)).To(Succeed())
			_, err = repo.GetByTokenHash(ctx, liveHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
