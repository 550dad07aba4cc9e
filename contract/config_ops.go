package contract

import (
	"encoding/json"
	"fmt"
	"time"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Defaults for the tunable governance and reputation parameters. They are
// materialized into a ledger-resident GovernanceConfig on first read and
// mutable only through the admin operations below.
const (
	defaultVotingDurationSeconds    = int64(7 * 24 * 60 * 60) // 7 days
	defaultMinProposalThreshold     = uint64(1000)
	defaultQuorumThresholdPercent   = uint64(30)
	defaultApprovalThresholdPercent = uint64(60)
	defaultProfileWeight            = uint64(30)
	defaultPaymentWeight            = uint64(40)
	defaultCommunityWeight          = uint64(30)
	defaultRewardRatePercent        = uint64(5)
)

// levelLadderSize is the fixed number of reputation levels.
const levelLadderSize = 10

func defaultLevelLadder() []uint64 {
	return []uint64{100, 200, 350, 500, 700, 900, 1200, 1500, 2000, 2500}
}

func (s *TrustGovSmartContract) createConfigKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(configObjectType, []string{"current"})
}

// getGovernanceConfig reads the stored configuration, falling back to defaults
// when none has been persisted yet.
func (s *TrustGovSmartContract) getGovernanceConfig(ctx contractapi.TransactionContextInterface) (*model.GovernanceConfig, error) {
	configKey, err := s.createConfigKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create config key: %w", err)
	}
	configBytes, err := ctx.GetStub().GetState(configKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading governance config: %w", err)
	}
	if configBytes == nil {
		return &model.GovernanceConfig{
			ObjectType:               configObjectType,
			VotingDurationSeconds:    defaultVotingDurationSeconds,
			MinProposalThreshold:     defaultMinProposalThreshold,
			QuorumThresholdPercent:   defaultQuorumThresholdPercent,
			ApprovalThresholdPercent: defaultApprovalThresholdPercent,
			ProfileWeight:            defaultProfileWeight,
			PaymentWeight:            defaultPaymentWeight,
			CommunityWeight:          defaultCommunityWeight,
			LevelLadder:              defaultLevelLadder(),
			RewardRatePercent:        defaultRewardRatePercent,
		}, nil
	}
	var cfg model.GovernanceConfig
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal governance config: %w", err)
	}
	if len(cfg.LevelLadder) == 0 {
		cfg.LevelLadder = defaultLevelLadder()
	}
	return &cfg, nil
}

func (s *TrustGovSmartContract) putGovernanceConfig(ctx contractapi.TransactionContextInterface, cfg *model.GovernanceConfig) error {
	configKey, err := s.createConfigKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to create config key: %w", err)
	}
	cfg.ObjectType = configObjectType
	configBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal governance config: %w", err)
	}
	return ctx.GetStub().PutState(configKey, configBytes)
}

func (s *TrustGovSmartContract) stampConfig(ctx contractapi.TransactionContextInterface, cfg *model.GovernanceConfig, actor *actorInfo) error {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	cfg.LastUpdatedAt = now
	cfg.LastUpdatedBy = actor.fullID
	return nil
}

// GetGovernanceConfig returns the current tunable parameters.
func (s *TrustGovSmartContract) GetGovernanceConfig(ctx contractapi.TransactionContextInterface) (*model.GovernanceConfig, error) {
	logger.Debug("Chaincode Call: GetGovernanceConfig")
	return s.getGovernanceConfig(ctx)
}

// UpdateGovernanceParams tunes the proposal lifecycle parameters. Admin only.
func (s *TrustGovSmartContract) UpdateGovernanceParams(ctx contractapi.TransactionContextInterface,
	votingDurationSeconds int64, minProposalThreshold, quorumThresholdPercent, approvalThresholdPercent uint64) error {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGovernanceParams: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := s.requireAdmin(ctx, im); err != nil {
		return fmt.Errorf("UpdateGovernanceParams: %w", err)
	}

	if votingDurationSeconds <= 0 {
		return fmt.Errorf("%w: votingDurationSeconds must be positive, got %d", ErrConfiguration, votingDurationSeconds)
	}
	if quorumThresholdPercent == 0 || quorumThresholdPercent > 100 {
		return fmt.Errorf("%w: quorumThresholdPercent must be in 1..100, got %d", ErrConfiguration, quorumThresholdPercent)
	}
	if approvalThresholdPercent == 0 || approvalThresholdPercent >= 100 {
		return fmt.Errorf("%w: approvalThresholdPercent must be in 1..99, got %d", ErrConfiguration, approvalThresholdPercent)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGovernanceParams: %w", err)
	}
	cfg.VotingDurationSeconds = votingDurationSeconds
	cfg.MinProposalThreshold = minProposalThreshold
	cfg.QuorumThresholdPercent = quorumThresholdPercent
	cfg.ApprovalThresholdPercent = approvalThresholdPercent
	if err := s.stampConfig(ctx, cfg, actor); err != nil {
		return err
	}
	if err := s.putGovernanceConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdateGovernanceParams: failed to save config: %w", err)
	}

	s.emitGovernanceEvent(ctx, "GovernanceParamsUpdated", map[string]interface{}{
		"votingDurationSeconds":    votingDurationSeconds,
		"minProposalThreshold":     minProposalThreshold,
		"quorumThresholdPercent":   quorumThresholdPercent,
		"approvalThresholdPercent": approvalThresholdPercent,
		"updatedBy":                actor.fullID,
	})
	logger.Infof("Governance params updated by admin '%s': duration=%ds minThreshold=%d quorum=%d%% approval=%d%%",
		actor.alias, votingDurationSeconds, minProposalThreshold, quorumThresholdPercent, approvalThresholdPercent)
	return nil
}

// UpdateReputationWeights sets the three reputation component weights. The
// weights must sum to exactly 100; this is the only place the sum is enforced,
// so a recomputation never fails on configuration.
func (s *TrustGovSmartContract) UpdateReputationWeights(ctx contractapi.TransactionContextInterface,
	profileWeight, paymentWeight, communityWeight uint64) error {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("UpdateReputationWeights: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := s.requireAdmin(ctx, im); err != nil {
		return fmt.Errorf("UpdateReputationWeights: %w", err)
	}

	if profileWeight+paymentWeight+communityWeight != 100 {
		return fmt.Errorf("%w: reputation weights must sum to 100, got %d+%d+%d=%d",
			ErrConfiguration, profileWeight, paymentWeight, communityWeight, profileWeight+paymentWeight+communityWeight)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdateReputationWeights: %w", err)
	}
	cfg.ProfileWeight = profileWeight
	cfg.PaymentWeight = paymentWeight
	cfg.CommunityWeight = communityWeight
	if err := s.stampConfig(ctx, cfg, actor); err != nil {
		return err
	}
	if err := s.putGovernanceConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdateReputationWeights: failed to save config: %w", err)
	}

	s.emitGovernanceEvent(ctx, "ReputationWeightsUpdated", map[string]interface{}{
		"profileWeight":   profileWeight,
		"paymentWeight":   paymentWeight,
		"communityWeight": communityWeight,
		"updatedBy":       actor.fullID,
	})
	logger.Infof("Reputation weights updated by admin '%s': profile=%d payment=%d community=%d",
		actor.alias, profileWeight, paymentWeight, communityWeight)
	return nil
}

// UpdateLevelLadder replaces the 10-entry reputation level ladder. The ladder
// is passed as a JSON array and must be strictly ascending. Admin only.
func (s *TrustGovSmartContract) UpdateLevelLadder(ctx contractapi.TransactionContextInterface, ladderJSON string) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("UpdateLevelLadder: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := s.requireAdmin(ctx, im); err != nil {
		return fmt.Errorf("UpdateLevelLadder: %w", err)
	}

	var ladder []uint64
	if err := json.Unmarshal([]byte(ladderJSON), &ladder); err != nil {
		return fmt.Errorf("%w: invalid ladderJSON: %v", ErrInvalidInput, err)
	}
	if len(ladder) != levelLadderSize {
		return fmt.Errorf("%w: level ladder must have exactly %d entries, got %d", ErrConfiguration, levelLadderSize, len(ladder))
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i] <= ladder[i-1] {
			return fmt.Errorf("%w: level ladder must be strictly ascending, entry %d (%d) <= entry %d (%d)",
				ErrConfiguration, i, ladder[i], i-1, ladder[i-1])
		}
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdateLevelLadder: %w", err)
	}
	cfg.LevelLadder = ladder
	if err := s.stampConfig(ctx, cfg, actor); err != nil {
		return err
	}
	if err := s.putGovernanceConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdateLevelLadder: failed to save config: %w", err)
	}

	s.emitGovernanceEvent(ctx, "LevelLadderUpdated", map[string]interface{}{
		"levelLadder": ladder,
		"updatedBy":   actor.fullID,
	})
	logger.Infof("Level ladder updated by admin '%s': %v", actor.alias, ladder)
	return nil
}

// UpdateRewardRate sets the on-time payment reward rate consumed by the
// payment ledger. Admin only.
func (s *TrustGovSmartContract) UpdateRewardRate(ctx contractapi.TransactionContextInterface, rewardRatePercent uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("UpdateRewardRate: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := s.requireAdmin(ctx, im); err != nil {
		return fmt.Errorf("UpdateRewardRate: %w", err)
	}
	if rewardRatePercent > 100 {
		return fmt.Errorf("%w: rewardRatePercent must not exceed 100, got %d", ErrConfiguration, rewardRatePercent)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdateRewardRate: %w", err)
	}
	cfg.RewardRatePercent = rewardRatePercent
	if err := s.stampConfig(ctx, cfg, actor); err != nil {
		return err
	}
	if err := s.putGovernanceConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdateRewardRate: failed to save config: %w", err)
	}

	s.emitGovernanceEvent(ctx, "RewardRateUpdated", map[string]interface{}{
		"rewardRatePercent": rewardRatePercent,
		"updatedBy":         actor.fullID,
	})
	logger.Infof("Reward rate updated by admin '%s' to %d%%", actor.alias, rewardRatePercent)
	return nil
}

// votingDuration returns the configured window length as a time.Duration.
func votingDuration(cfg *model.GovernanceConfig) time.Duration {
	return time.Duration(cfg.VotingDurationSeconds) * time.Second
}
