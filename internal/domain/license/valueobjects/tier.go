package valueobjects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTier is returned when a tier value is not recognised.
var ErrInvalidTier = errors.New("invalid license tier")

// Tier is the entitlement level a license grants.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var ValidTiers = map[Tier]bool{
	TierFree:       true,
	TierPro:        true,
	TierEnterprise: true,
}

// PaidTiers lists issuable tiers, highest first.
var PaidTiers = []Tier{TierEnterprise, TierPro}

func ParseTier(value string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(value)))
	if !ValidTiers[tier] {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, value)
	}
	return tier, nil
}

func (t Tier) String() string {
	return string(t)
}

func (t Tier) IsValid() bool {
	return ValidTiers[t]
}

// IsPaid reports whether the tier is above the free fallback.
func (t Tier) IsPaid() bool {
	return t == TierPro || t == TierEnterprise
}
