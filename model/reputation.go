package model

import "time"

// ReputationMetrics holds the computed reputation of a single participant.
// Updated only by RecomputeReputation; staleness is observable via LastUpdated.
type ReputationMetrics struct {
	ObjectType     string    `json:"objectType"` // "ReputationMetrics"
	Participant    string    `json:"participant"`
	ProfileScore   uint64    `json:"profileScore"`
	PaymentScore   uint64    `json:"paymentScore"`
	CommunityScore uint64    `json:"communityScore"`
	TotalScore     uint64    `json:"totalScore"` // Weighted sum of the three components
	Level          int       `json:"level"`      // 1..10, derived from TotalScore via the level ladder
	LastUpdated    time.Time `json:"lastUpdated"`
}

// PaymentHistory is the aggregated payment record of a participant.
type PaymentHistory struct {
	ObjectType         string    `json:"objectType"` // "PaymentHistory"
	Participant        string    `json:"participant"`
	TotalPayments      uint64    `json:"totalPayments"`
	OnTimePayments     uint64    `json:"onTimePayments"`
	OverduePayments    uint64    `json:"overduePayments"`
	TotalRewardsEarned uint64    `json:"totalRewardsEarned"`
	LastPaymentDate    time.Time `json:"lastPaymentDate"`
}

// CommunityStats counts a participant's governance activity. Maintained
// incrementally at proposal creation and vote time so reputation recomputation
// never scans proposal history.
type CommunityStats struct {
	ObjectType       string `json:"objectType"` // "CommunityStats"
	Participant      string `json:"participant"`
	ProposalsCreated uint64 `json:"proposalsCreated"`
	VotesCast        uint64 `json:"votesCast"`
}

// StakeRecord tracks a council member's elective stake and unstaked collateral
// credit. Mutated only by the stake ledger operations.
type StakeRecord struct {
	ObjectType    string    `json:"objectType"` // "StakeRecord"
	Participant   string    `json:"participant"`
	Staked        uint64    `json:"staked"`
	Credit        uint64    `json:"credit"` // Collateral available to stake or withdraw
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}
