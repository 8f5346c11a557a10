// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import "time"

// BillingUnit is the billing granularity.
const BillingUnit = 100 * time.Millisecond

// BilledDuration rounds elapsed up to the next BillingUnit boundary.
// Every invocation is billed at least one unit, including one that took
// no measurable time.
func BilledDuration(elapsed time.Duration) time.Duration {
	if elapsed <= BillingUnit {
		return BillingUnit
	}
	units := (elapsed + BillingUnit - 1) / BillingUnit
	return units * BillingUnit
}
