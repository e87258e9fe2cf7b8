package tier

import "coach-backend/internal/contract"

// Quota is a user's tier together with what they have used this period.
// It is what credential stores persist as tier_data.
type Quota struct {
	Tier Tier                  `json:"tier"`
	Used map[contract.Kind]int `json:"usage"`
}

// DefaultQuota is used when nothing is stored yet.
func DefaultQuota() Quota {
	return Quota{Tier: Free, Used: map[contract.Kind]int{}}
}

// Check reports whether kind is still available.
func (q Quota) Check(kind contract.Kind) contract.TierUsage {
	return Check(Normalize(string(q.Tier)), kind, q.Used[kind])
}

// Increment returns a copy of q with kind counted once more.
func (q Quota) Increment(kind contract.Kind) Quota {
	used := make(map[contract.Kind]int, len(q.Used)+1)
	for k, v := range q.Used {
		used[k] = v
	}
	used[kind]++
	return Quota{Tier: q.Tier, Used: used}
}
