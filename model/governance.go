package model

import "time"

// ProposalStatus defines the possible states of a governance proposal.
type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "ACTIVE"   // Voting window open (or lapsed, pending execution)
	ProposalExecuted ProposalStatus = "EXECUTED" // Passed quorum + approval, side effect dispatched
	ProposalRejected ProposalStatus = "REJECTED" // Failed quorum or approval
)

// ProposalType defines the kinds of state mutations a proposal can request.
type ProposalType string

const (
	ProposalApproveParticipant  ProposalType = "APPROVE_PARTICIPANT"
	ProposalSuspendParticipant  ProposalType = "SUSPEND_PARTICIPANT"
	ProposalAddAdmin            ProposalType = "ADD_ADMIN"
	ProposalRemoveAdmin         ProposalType = "REMOVE_ADMIN"
	ProposalAddCouncilMember    ProposalType = "ADD_COUNCIL_MEMBER"
	ProposalRemoveCouncilMember ProposalType = "REMOVE_COUNCIL_MEMBER"
	ProposalParameterUpdate     ProposalType = "PARAMETER_UPDATE"
)

// Proposal is the central data structure of the governance state machine.
// It is created by CreateProposal, mutated only by CastVote and ExecuteProposal,
// and immutable once Executed or Rejected.
type Proposal struct {
	ObjectType    string            `json:"objectType"` // "Proposal"
	ID            uint64            `json:"id"`         // Monotonic, allocated from the proposal counter
	Type          ProposalType      `json:"type"`
	Proposer      string            `json:"proposer"` // Full ID of the creating participant
	ProposerAlias string            `json:"proposerAlias"`
	Target        string            `json:"target"` // Full ID of the participant affected (empty for PARAMETER_UPDATE)
	TargetAlias   string            `json:"targetAlias"`
	Description   string            `json:"description"`
	Metadata      string            `json:"metadata"` // Free-form payload; for PARAMETER_UPDATE this records the intent
	VotesFor      uint64            `json:"votesFor"`
	VotesAgainst  uint64            `json:"votesAgainst"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"` // StartTime + voting duration
	Status        ProposalStatus    `json:"status"`
	Executed      bool              `json:"executed"`
	Voters        map[string]uint64 `json:"voters"` // Full ID -> voting power frozen at cast time
	VotingClosed  bool              `json:"votingClosed"` // Derived on read: tx time past EndTime; never persisted as a status
	LastUpdatedAt time.Time         `json:"lastUpdatedAt"`
}

// GovernanceConfig holds the tunable parameters of the governance and reputation
// engine. It is stored on the ledger and mutable only by admins.
type GovernanceConfig struct {
	ObjectType               string    `json:"objectType"`               // "GovernanceConfig"
	VotingDurationSeconds    int64     `json:"votingDurationSeconds"`    // Length of the proposal voting window
	MinProposalThreshold     uint64    `json:"minProposalThreshold"`     // Minimum totalScore required to create a proposal
	QuorumThresholdPercent   uint64    `json:"quorumThresholdPercent"`   // Percent of total stake that must participate
	ApprovalThresholdPercent uint64    `json:"approvalThresholdPercent"` // Percent of cast weight that must be in favor (strict >)
	ProfileWeight            uint64    `json:"profileWeight"`            // Reputation weights, must sum to 100
	PaymentWeight            uint64    `json:"paymentWeight"`
	CommunityWeight          uint64    `json:"communityWeight"`
	LevelLadder              []uint64  `json:"levelLadder"`       // 10 ascending thresholds for levels 1..10
	RewardRatePercent        uint64    `json:"rewardRatePercent"` // On-time payment reward, percent of amount
	LastUpdatedAt            time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy            string    `json:"lastUpdatedBy"`
}

// VoteReceipt is returned by CastVote so callers can observe the frozen weight.
type VoteReceipt struct {
	ProposalID   uint64 `json:"proposalId"`
	Voter        string `json:"voter"`
	Support      bool   `json:"support"`
	Weight       uint64 `json:"weight"`
	VotesFor     uint64 `json:"votesFor"`
	VotesAgainst uint64 `json:"votesAgainst"`
}

// PaginatedProposalResponse is the structure returned by paginated proposal queries.
type PaginatedProposalResponse struct {
	Proposals    []*Proposal `json:"proposals"`
	NextBookmark string      `json:"nextBookmark"`
	FetchedCount int32       `json:"fetchedCount"`
}
