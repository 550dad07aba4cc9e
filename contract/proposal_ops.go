package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Governance State Machine ---
// Proposals move Active -> {Executed | Rejected} and are immutable once
// terminal. Expiry is lazy: nothing closes a window, CastVote and
// ExecuteProposal just compare the tx timestamp against EndTime.

const proposalCounterAttr = "proposal"

func (s *TrustGovSmartContract) createProposalCounterKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(counterObjectType, []string{proposalCounterAttr})
}

// nextProposalID allocates the next monotonic proposal ID.
func (s *TrustGovSmartContract) nextProposalID(ctx contractapi.TransactionContextInterface) (uint64, error) {
	counterKey, err := s.createProposalCounterKey(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create proposal counter key: %w", err)
	}
	counterBytes, err := ctx.GetStub().GetState(counterKey)
	if err != nil {
		return 0, fmt.Errorf("ledger error reading proposal counter: %w", err)
	}
	var count uint64
	if counterBytes != nil {
		count, err = strconv.ParseUint(string(counterBytes), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse proposal counter '%s': %w", string(counterBytes), err)
		}
	}
	next := count + 1
	if err := ctx.GetStub().PutState(counterKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, fmt.Errorf("failed to update proposal counter: %w", err)
	}
	return next, nil
}

func parseProposalType(proposalType string) (model.ProposalType, error) {
	pt := model.ProposalType(proposalType)
	switch pt {
	case model.ProposalApproveParticipant, model.ProposalSuspendParticipant,
		model.ProposalAddAdmin, model.ProposalRemoveAdmin,
		model.ProposalAddCouncilMember, model.ProposalRemoveCouncilMember,
		model.ProposalParameterUpdate:
		return pt, nil
	}
	return "", fmt.Errorf("%w: unknown proposal type '%s'", ErrInvalidInput, proposalType)
}

func (s *TrustGovSmartContract) getProposalByID(ctx contractapi.TransactionContextInterface, proposalID uint64) (*model.Proposal, error) {
	proposalKey, err := s.createProposalCompositeKey(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to create key for proposal %d: %w", proposalID, err)
	}
	proposalBytes, err := ctx.GetStub().GetState(proposalKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading proposal %d: %w", proposalID, err)
	}
	if proposalBytes == nil {
		return nil, fmt.Errorf("%w: proposal %d does not exist", ErrNotFound, proposalID)
	}
	var proposal model.Proposal
	if err := json.Unmarshal(proposalBytes, &proposal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal %d: %w", proposalID, err)
	}
	if proposal.Voters == nil {
		proposal.Voters = map[string]uint64{}
	}
	return &proposal, nil
}

func (s *TrustGovSmartContract) putProposal(ctx contractapi.TransactionContextInterface, proposal *model.Proposal) error {
	proposalKey, err := s.createProposalCompositeKey(ctx, proposal.ID)
	if err != nil {
		return fmt.Errorf("failed to create key for proposal %d: %w", proposal.ID, err)
	}
	proposalBytes, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal %d: %w", proposal.ID, err)
	}
	return ctx.GetStub().PutState(proposalKey, proposalBytes)
}

// CreateProposal opens a new proposal. The caller must be verified and hold a
// total reputation score of at least the configured proposal threshold.
func (s *TrustGovSmartContract) CreateProposal(ctx contractapi.TransactionContextInterface,
	proposalType, target, description, metadata string) (uint64, error) {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)

	verified, err := im.IsVerified(actor.fullID)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: failed to check verification for '%s': %w", actor.fullID, err)
	}
	if !verified {
		return 0, fmt.Errorf("%w: proposer '%s' is not verified", ErrUnauthorized, actor.fullID)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: %w", err)
	}
	metrics, err := s.getReputationMetrics(ctx, actor.fullID)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: %w", err)
	}
	if metrics.TotalScore < cfg.MinProposalThreshold {
		return 0, fmt.Errorf("%w: proposer '%s' total score %d below proposal threshold %d",
			ErrUnauthorized, actor.fullID, metrics.TotalScore, cfg.MinProposalThreshold)
	}

	pt, err := parseProposalType(proposalType)
	if err != nil {
		return 0, err
	}
	if err := s.validateRequiredString(description, "description", maxDescriptionLength); err != nil {
		return 0, err
	}
	if err := s.validateOptionalString(metadata, "metadata", maxMetadataLength); err != nil {
		return 0, err
	}

	var targetFullID, targetAlias string
	if pt == model.ProposalParameterUpdate {
		if target != "" {
			return 0, fmt.Errorf("%w: parameter-update proposals must not name a target participant", ErrInvalidInput)
		}
		// The metadata carries the intended parameter change; execution records
		// it without dispatching any side effect.
		if err := s.validateRequiredString(metadata, "metadata", maxMetadataLength); err != nil {
			return 0, err
		}
	} else {
		if err := s.validateRequiredString(target, "target", maxStringInputLength); err != nil {
			return 0, err
		}
		targetFullID, err = im.ResolveIdentity(target)
		if err != nil {
			return 0, fmt.Errorf("CreateProposal: failed to resolve target '%s': %w", target, err)
		}
		targetInfo, err := im.getParticipantByFullID(targetFullID)
		if err != nil {
			return 0, fmt.Errorf("CreateProposal: target must be registered: %w", err)
		}
		targetAlias = targetInfo.ShortName
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: failed to get transaction timestamp: %w", err)
	}
	proposalID, err := s.nextProposalID(ctx)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: %w", err)
	}

	proposal := model.Proposal{
		ObjectType:    proposalObjectType,
		ID:            proposalID,
		Type:          pt,
		Proposer:      actor.fullID,
		ProposerAlias: actor.alias,
		Target:        targetFullID,
		TargetAlias:   targetAlias,
		Description:   description,
		Metadata:      metadata,
		VotesFor:      0,
		VotesAgainst:  0,
		StartTime:     now,
		EndTime:       now.Add(votingDuration(cfg)),
		Status:        model.ProposalActive,
		Executed:      false,
		Voters:        map[string]uint64{},
		LastUpdatedAt: now,
	}
	if err := s.putProposal(ctx, &proposal); err != nil {
		return 0, fmt.Errorf("CreateProposal: failed to save proposal %d: %w", proposalID, err)
	}

	// Keep the proposer's community activity counter current so reputation
	// recomputation stays O(1).
	stats, err := s.getCommunityStats(ctx, actor.fullID)
	if err != nil {
		return 0, fmt.Errorf("CreateProposal: %w", err)
	}
	stats.ProposalsCreated++
	if err := s.putCommunityStats(ctx, stats); err != nil {
		return 0, fmt.Errorf("CreateProposal: failed to update community stats for '%s': %w", actor.fullID, err)
	}

	s.emitGovernanceEvent(ctx, "ProposalCreated", map[string]interface{}{
		"proposalId":  proposalID,
		"type":        string(pt),
		"proposer":    actor.fullID,
		"target":      targetFullID,
		"startTime":   proposal.StartTime,
		"endTime":     proposal.EndTime,
	})
	logger.Infof("Proposal %d (%s) created by '%s', voting until %s", proposalID, pt, actor.alias, proposal.EndTime)
	return proposalID, nil
}

// CastVote records the caller's vote with their voting power frozen at this
// instant. One vote per participant per proposal; no revote ever.
func (s *TrustGovSmartContract) CastVote(ctx contractapi.TransactionContextInterface, proposalID uint64, support bool) (*model.VoteReceipt, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("CastVote: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)

	proposal, err := s.getProposalByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("CastVote: %w", err)
	}
	if proposal.Status != model.ProposalActive {
		return nil, fmt.Errorf("%w: proposal %d is %s, voting is closed", ErrInvalidState, proposalID, proposal.Status)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("CastVote: failed to get transaction timestamp: %w", err)
	}
	if now.After(proposal.EndTime) {
		return nil, fmt.Errorf("%w: voting window of proposal %d closed at %s", ErrInvalidState, proposalID, proposal.EndTime)
	}

	verified, err := im.IsVerified(actor.fullID)
	if err != nil {
		return nil, fmt.Errorf("CastVote: failed to check verification for '%s': %w", actor.fullID, err)
	}
	if !verified {
		return nil, fmt.Errorf("%w: voter '%s' is not verified", ErrUnauthorized, actor.fullID)
	}
	if _, alreadyVoted := proposal.Voters[actor.fullID]; alreadyVoted {
		return nil, fmt.Errorf("%w: participant '%s' already voted on proposal %d", ErrInvalidState, actor.fullID, proposalID)
	}

	weight, err := s.votingPowerByFullID(ctx, im, actor.fullID)
	if err != nil {
		return nil, fmt.Errorf("CastVote: %w", err)
	}
	if weight == 0 {
		return nil, fmt.Errorf("%w: participant '%s' has zero voting power", ErrUnauthorized, actor.fullID)
	}

	if support {
		proposal.VotesFor += weight
	} else {
		proposal.VotesAgainst += weight
	}
	proposal.Voters[actor.fullID] = weight
	proposal.LastUpdatedAt = now
	if err := s.putProposal(ctx, proposal); err != nil {
		return nil, fmt.Errorf("CastVote: failed to save proposal %d: %w", proposalID, err)
	}

	stats, err := s.getCommunityStats(ctx, actor.fullID)
	if err != nil {
		return nil, fmt.Errorf("CastVote: %w", err)
	}
	stats.VotesCast++
	if err := s.putCommunityStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("CastVote: failed to update community stats for '%s': %w", actor.fullID, err)
	}

	s.emitGovernanceEvent(ctx, "VoteCast", map[string]interface{}{
		"proposalId":   proposalID,
		"voter":        actor.fullID,
		"support":      support,
		"weight":       weight,
		"votesFor":     proposal.VotesFor,
		"votesAgainst": proposal.VotesAgainst,
	})
	logger.Infof("Vote cast on proposal %d by '%s': support=%v weight=%d", proposalID, actor.alias, support, weight)

	return &model.VoteReceipt{
		ProposalID:   proposalID,
		Voter:        actor.fullID,
		Support:      support,
		Weight:       weight,
		VotesFor:     proposal.VotesFor,
		VotesAgainst: proposal.VotesAgainst,
	}, nil
}

// ExecuteProposal tallies a proposal whose voting window has closed. Quorum is
// measured against the stake ledger's running total; approval requires strictly
// more than the configured share of cast weight, so an exact tie fails. A
// passing proposal dispatches exactly one side effect.
func (s *TrustGovSmartContract) ExecuteProposal(ctx contractapi.TransactionContextInterface, proposalID uint64) (*model.Proposal, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExecuteProposal: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)

	proposal, err := s.getProposalByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("ExecuteProposal: %w", err)
	}
	if proposal.Status != model.ProposalActive || proposal.Executed {
		return nil, fmt.Errorf("%w: proposal %d is already %s", ErrInvalidState, proposalID, proposal.Status)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExecuteProposal: failed to get transaction timestamp: %w", err)
	}
	if !now.After(proposal.EndTime) {
		return nil, fmt.Errorf("%w: voting window of proposal %d still open until %s", ErrInvalidState, proposalID, proposal.EndTime)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExecuteProposal: %w", err)
	}
	totalStake, err := s.getTotalStake(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExecuteProposal: %w", err)
	}

	totalVotes := proposal.VotesFor + proposal.VotesAgainst
	quorumMet := totalVotes*100 >= cfg.QuorumThresholdPercent*totalStake
	approvalMet := totalVotes > 0 && proposal.VotesFor*100 > cfg.ApprovalThresholdPercent*totalVotes

	if quorumMet && approvalMet {
		if err := s.applyProposalEffect(im, proposal); err != nil {
			return nil, fmt.Errorf("ExecuteProposal: failed to dispatch side effect of proposal %d: %w", proposalID, err)
		}
		proposal.Status = model.ProposalExecuted
		proposal.Executed = true
	} else {
		proposal.Status = model.ProposalRejected
	}
	proposal.LastUpdatedAt = now
	if err := s.putProposal(ctx, proposal); err != nil {
		return nil, fmt.Errorf("ExecuteProposal: failed to save proposal %d: %w", proposalID, err)
	}

	eventName := "ProposalRejected"
	if proposal.Executed {
		eventName = "ProposalExecuted"
	}
	s.emitGovernanceEvent(ctx, eventName, map[string]interface{}{
		"proposalId":   proposalID,
		"type":         string(proposal.Type),
		"target":       proposal.Target,
		"votesFor":     proposal.VotesFor,
		"votesAgainst": proposal.VotesAgainst,
		"totalStake":   totalStake,
		"quorumMet":    quorumMet,
		"approvalMet":  approvalMet,
		"executedBy":   actor.fullID,
	})
	logger.Infof("Proposal %d finalized as %s by '%s' (for=%d against=%d totalStake=%d quorum=%v approval=%v)",
		proposalID, proposal.Status, actor.alias, proposal.VotesFor, proposal.VotesAgainst, totalStake, quorumMet, approvalMet)

	proposal.VotingClosed = true
	return proposal, nil
}

// applyProposalEffect dispatches the single side effect of a passed proposal.
// This is the governance mutation path: authorization is the passed vote, so
// it calls the identity manager's internal persistence helpers directly
// instead of the admin-gated entry points.
func (s *TrustGovSmartContract) applyProposalEffect(im *IdentityManager, proposal *model.Proposal) error {
	switch proposal.Type {
	case model.ProposalApproveParticipant:
		return im.applyVerification(proposal.Target, model.VerificationApproved)
	case model.ProposalSuspendParticipant:
		return im.applyVerification(proposal.Target, model.VerificationSuspended)
	case model.ProposalAddAdmin:
		return im.setAdminStatus(proposal.Target, true)
	case model.ProposalRemoveAdmin:
		return im.setAdminStatus(proposal.Target, false)
	case model.ProposalAddCouncilMember:
		return im.grantRole(proposal.Target, councilRole)
	case model.ProposalRemoveCouncilMember:
		return im.revokeRole(proposal.Target, councilRole)
	case model.ProposalParameterUpdate:
		// Intent only: the executed proposal records the requested change in
		// its metadata; applying it remains a privileged config operation.
		logger.Infof("Parameter-update proposal %d executed; recorded intent: %s", proposal.ID, proposal.Metadata)
		return nil
	}
	return fmt.Errorf("%w: proposal %d has unknown type '%s'", ErrInvalidState, proposal.ID, proposal.Type)
}
