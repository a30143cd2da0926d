// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"time"
)

// Lockout configuration.
const (
	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 5

	// LockoutDuration is how long an account stays locked once the threshold is hit.
	LockoutDuration = 30 * time.Minute
)

// IsLockedOutAt returns true if the lockout time is after t.
// lockedUntil is the stored lockout timestamp (nil if never locked).
func IsLockedOutAt(lockedUntil *time.Time, t time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(t)
}

// LockoutExpiry returns the locked_until value to store when a failure
// recorded at now reaches the threshold.
func LockoutExpiry(now time.Time) time.Time {
	return now.Add(LockoutDuration)
}

// ReachesLockout reports whether the post-increment failure count locks the account.
func ReachesLockout(failures int) bool {
	return failures >= LockoutThreshold
}
