package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query & Read API Operations ---

const (
	defaultProposalPageSize = int32(20)
	maxProposalPageSize     = int32(100)
)

// votingPowerByFullID computes power = reputation total score + staked amount
// (the latter only while the council role is held). Reads the last persisted
// metrics; it never recomputes.
func (s *TrustGovSmartContract) votingPowerByFullID(ctx contractapi.TransactionContextInterface, im *IdentityManager, fullID string) (uint64, error) {
	metrics, err := s.getReputationMetrics(ctx, fullID)
	if err != nil {
		return 0, err
	}
	power := metrics.TotalScore

	isCouncil, err := im.HasRole(fullID, councilRole)
	if err != nil {
		return 0, fmt.Errorf("failed to check council role for '%s': %w", fullID, err)
	}
	if isCouncil {
		rec, err := s.getStakeRecord(ctx, fullID)
		if err != nil {
			return 0, err
		}
		power += rec.Staked
	}
	return power, nil
}

// CalculateVotingPower returns a participant's current voting power. Purely
// informational; CastVote performs the same calculation at vote time.
func (s *TrustGovSmartContract) CalculateVotingPower(ctx contractapi.TransactionContextInterface, participant string) (uint64, error) {
	logger.Debugf("Chaincode Call: CalculateVotingPower for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return 0, fmt.Errorf("CalculateVotingPower: failed to resolve participant '%s': %w", participant, err)
	}
	return s.votingPowerByFullID(ctx, im, targetFullID)
}

// CanCreateProposal reports whether a participant currently clears the
// verification and reputation gates for opening a proposal.
func (s *TrustGovSmartContract) CanCreateProposal(ctx contractapi.TransactionContextInterface, participant string) (bool, error) {
	logger.Debugf("Chaincode Call: CanCreateProposal for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return false, fmt.Errorf("CanCreateProposal: failed to resolve participant '%s': %w", participant, err)
	}
	verified, err := im.IsVerified(targetFullID)
	if err != nil {
		return false, fmt.Errorf("CanCreateProposal: %w", err)
	}
	if !verified {
		return false, nil
	}
	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return false, fmt.Errorf("CanCreateProposal: %w", err)
	}
	metrics, err := s.getReputationMetrics(ctx, targetFullID)
	if err != nil {
		return false, fmt.Errorf("CanCreateProposal: %w", err)
	}
	return metrics.TotalScore >= cfg.MinProposalThreshold, nil
}

// markVotingClosed fills in the derived VotingClosed flag. Expiry is never
// materialized on the ledger; readers learn it from the proposal's own fields.
func (s *TrustGovSmartContract) markVotingClosed(ctx contractapi.TransactionContextInterface, proposal *model.Proposal) error {
	if proposal.Status != model.ProposalActive {
		proposal.VotingClosed = true
		return nil
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	proposal.VotingClosed = now.After(proposal.EndTime)
	return nil
}

// GetProposal returns a proposal by ID with its derived voting-window state.
func (s *TrustGovSmartContract) GetProposal(ctx contractapi.TransactionContextInterface, proposalID uint64) (*model.Proposal, error) {
	logger.Debugf("Chaincode Call: GetProposal %d", proposalID)
	proposal, err := s.getProposalByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("GetProposal: %w", err)
	}
	if err := s.markVotingClosed(ctx, proposal); err != nil {
		return nil, fmt.Errorf("GetProposal: %w", err)
	}
	return proposal, nil
}

// GetTotalProposals returns the number of proposals ever created.
func (s *TrustGovSmartContract) GetTotalProposals(ctx contractapi.TransactionContextInterface) (uint64, error) {
	logger.Debug("Chaincode Call: GetTotalProposals")
	counterKey, err := s.createProposalCounterKey(ctx)
	if err != nil {
		return 0, fmt.Errorf("GetTotalProposals: failed to create proposal counter key: %w", err)
	}
	counterBytes, err := ctx.GetStub().GetState(counterKey)
	if err != nil {
		return 0, fmt.Errorf("GetTotalProposals: ledger error reading proposal counter: %w", err)
	}
	if counterBytes == nil {
		return 0, nil
	}
	count, err := strconv.ParseUint(string(counterBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("GetTotalProposals: failed to parse proposal counter '%s': %w", string(counterBytes), err)
	}
	return count, nil
}

// ListProposals returns a page of proposals in creation order. pageSizeStr may
// be empty for the default page size; bookmark comes from a previous page's
// NextBookmark.
func (s *TrustGovSmartContract) ListProposals(ctx contractapi.TransactionContextInterface, pageSizeStr, bookmark string) (*model.PaginatedProposalResponse, error) {
	logger.Debugf("Chaincode Call: ListProposals pageSize='%s' bookmark='%s'", pageSizeStr, bookmark)

	pageSize := defaultProposalPageSize
	if pageSizeStr != "" {
		parsed, err := strconv.ParseInt(pageSizeStr, 10, 32)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: pageSize must be a positive integer, got '%s'", ErrInvalidInput, pageSizeStr)
		}
		pageSize = int32(parsed)
		if pageSize > maxProposalPageSize {
			pageSize = maxProposalPageSize
		}
	}

	iterator, metadata, err := ctx.GetStub().GetStateByPartialCompositeKeyWithPagination(proposalObjectType, []string{}, pageSize, bookmark)
	if err != nil {
		return nil, fmt.Errorf("ListProposals: failed to query proposals: %w", err)
	}
	defer iterator.Close()

	proposals := []*model.Proposal{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			logger.Warningf("ListProposals: failed to get next proposal from iterator: %v. Skipping.", iterErr)
			continue
		}
		var proposal model.Proposal
		if err := json.Unmarshal(queryResponse.Value, &proposal); err != nil {
			logger.Warningf("ListProposals: failed to unmarshal proposal data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if proposal.Voters == nil {
			proposal.Voters = map[string]uint64{}
		}
		if err := s.markVotingClosed(ctx, &proposal); err != nil {
			return nil, fmt.Errorf("ListProposals: %w", err)
		}
		proposals = append(proposals, &proposal)
	}

	response := &model.PaginatedProposalResponse{
		Proposals: proposals,
	}
	if metadata != nil {
		response.NextBookmark = metadata.Bookmark
		response.FetchedCount = metadata.FetchedRecordsCount
	}
	return response, nil
}

// GetReputationMetrics returns a participant's last computed reputation
// metrics. Zero-valued with level 1 when never recomputed.
func (s *TrustGovSmartContract) GetReputationMetrics(ctx contractapi.TransactionContextInterface, participant string) (*model.ReputationMetrics, error) {
	logger.Debugf("Chaincode Call: GetReputationMetrics for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return nil, fmt.Errorf("GetReputationMetrics: failed to resolve participant '%s': %w", participant, err)
	}
	return s.getReputationMetrics(ctx, targetFullID)
}

// GetCommunityStats returns a participant's community activity counters.
func (s *TrustGovSmartContract) GetCommunityStats(ctx contractapi.TransactionContextInterface, participant string) (*model.CommunityStats, error) {
	logger.Debugf("Chaincode Call: GetCommunityStats for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return nil, fmt.Errorf("GetCommunityStats: failed to resolve participant '%s': %w", participant, err)
	}
	return s.getCommunityStats(ctx, targetFullID)
}
