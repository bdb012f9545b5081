package model

import "fmt"

// UserTier is the closed set of subscription tiers. An unrecognized tier is a
// construction-time error, never a silent fallback to default limits.
type UserTier string

const (
	TierBasic      UserTier = "basic"
	TierPremium    UserTier = "premium"
	TierEnterprise UserTier = "enterprise"
	TierAdmin      UserTier = "admin"
)

var AllTiers = []UserTier{TierBasic, TierPremium, TierEnterprise, TierAdmin}

func ParseUserTier(name string) (UserTier, error) {
	for _, tier := range AllTiers {
		if string(tier) == name {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown user tier %q", name)
}

func (t UserTier) String() string {
	return string(t)
}

// EndpointClass is a coarse category of routes sharing a rate-limit policy.
type EndpointClass string

const (
	EndpointUpload EndpointClass = "upload"
	EndpointAPI    EndpointClass = "api"
	EndpointAuth   EndpointClass = "auth"
)

func (c EndpointClass) String() string {
	return string(c)
}
