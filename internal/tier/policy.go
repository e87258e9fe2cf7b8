package tier

import (
	"strings"

	"coach-backend/internal/contract"
)

// Tier is a subscription tier.
type Tier string

const (
	Free    Tier = "free"
	Premium Tier = "premium"
	Elite   Tier = "elite"
)

// Unlimited marks a kind without a quota.
const Unlimited = -1

var limits = map[Tier]map[contract.Kind]int{
	Free: {
		contract.KindProfile:       5,
		contract.KindConversation:  10,
		contract.KindPhoto:         3,
		contract.KindCompatibility: 2,
		contract.KindPage:          10,
	},
	Premium: {
		contract.KindProfile:       100,
		contract.KindConversation:  200,
		contract.KindPhoto:         50,
		contract.KindCompatibility: 50,
		contract.KindPage:          200,
	},
	Elite: {
		contract.KindProfile:       Unlimited,
		contract.KindConversation:  Unlimited,
		contract.KindPhoto:         Unlimited,
		contract.KindCompatibility: Unlimited,
		contract.KindPage:          Unlimited,
	},
}

// Normalize maps stored or marketing tier names onto a Tier. Unknown names stay as given
// so that Limit can treat them as having no quota.
func Normalize(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "free", "spark":
		return Free
	case "premium", "plus":
		return Premium
	case "elite", "expert", "pro":
		return Elite
	default:
		return Tier(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Limit returns the per-period quota for kind. Unknown tiers or kinds get 0.
func Limit(t Tier, kind contract.Kind) int {
	byKind, ok := limits[t]
	if !ok {
		return 0
	}
	return byKind[kind]
}

// Allowed reports whether one more request of kind fits in the quota.
func Allowed(t Tier, kind contract.Kind, used int) bool {
	limit := Limit(t, kind)
	return limit == Unlimited || used < limit
}

// Check returns the usage report for one kind.
func Check(t Tier, kind contract.Kind, used int) contract.TierUsage {
	return contract.TierUsage{
		Allowed:     Allowed(t, kind, used),
		CurrentTier: string(t),
		Kind:        kind,
		Used:        used,
		Limit:       Limit(t, kind),
	}
}
