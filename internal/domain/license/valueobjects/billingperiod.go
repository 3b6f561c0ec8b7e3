package valueobjects

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidBillingPeriod is returned when a billing period is not recognised.
var ErrInvalidBillingPeriod = errors.New("invalid billing period")

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodAnnual  BillingPeriod = "annual"
)

var ValidBillingPeriods = map[BillingPeriod]bool{
	BillingPeriodMonthly: true,
	BillingPeriodAnnual:  true,
}

// billingPeriodDays is the license lifetime per period. Monthly carries a
// few days of slack so a late renewal does not lapse the license.
var billingPeriodDays = map[BillingPeriod]int{
	BillingPeriodMonthly: 35,
	BillingPeriodAnnual:  365,
}

var billingPeriodAliases = map[string]BillingPeriod{
	"month":   BillingPeriodMonthly,
	"monthly": BillingPeriodMonthly,
	"year":    BillingPeriodAnnual,
	"yearly":  BillingPeriodAnnual,
	"annual":  BillingPeriodAnnual,
}

func ParseBillingPeriod(value string) (BillingPeriod, error) {
	period, ok := billingPeriodAliases[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidBillingPeriod, value)
	}
	return period, nil
}

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) IsValid() bool {
	return ValidBillingPeriods[p]
}

// Duration is the license lifetime granted by one payment.
func (p BillingPeriod) Duration() time.Duration {
	return time.Duration(billingPeriodDays[p]) * 24 * time.Hour
}

// ExpiresAt computes the expiry for a license issued at from.
func (p BillingPeriod) ExpiresAt(from time.Time) time.Time {
	return from.Add(p.Duration())
}
