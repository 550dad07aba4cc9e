package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Stake Ledger Operations ---
// Each participant has one StakeRecord holding staked amount and unstaked
// collateral credit. The total staked amount across the system is maintained
// as a running accumulator so quorum evaluation never scans the ledger.

const totalStakeKeyAttr = "total"

func (s *TrustGovSmartContract) createTotalStakeKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(stakeObjectType, []string{totalStakeKeyAttr})
}

func (s *TrustGovSmartContract) getStakeRecord(ctx contractapi.TransactionContextInterface, fullID string) (*model.StakeRecord, error) {
	stakeKey, err := s.createParticipantScopedKey(ctx, stakeObjectType, fullID)
	if err != nil {
		return nil, err
	}
	stakeBytes, err := ctx.GetStub().GetState(stakeKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading stake record for '%s': %w", fullID, err)
	}
	if stakeBytes == nil {
		return &model.StakeRecord{ObjectType: stakeObjectType, Participant: fullID}, nil
	}
	var rec model.StakeRecord
	if err := json.Unmarshal(stakeBytes, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stake record for '%s': %w", fullID, err)
	}
	return &rec, nil
}

func (s *TrustGovSmartContract) putStakeRecord(ctx contractapi.TransactionContextInterface, rec *model.StakeRecord) error {
	stakeKey, err := s.createParticipantScopedKey(ctx, stakeObjectType, rec.Participant)
	if err != nil {
		return err
	}
	recBytes, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal stake record for '%s': %w", rec.Participant, err)
	}
	return ctx.GetStub().PutState(stakeKey, recBytes)
}

func (s *TrustGovSmartContract) getTotalStake(ctx contractapi.TransactionContextInterface) (uint64, error) {
	totalKey, err := s.createTotalStakeKey(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create total stake key: %w", err)
	}
	totalBytes, err := ctx.GetStub().GetState(totalKey)
	if err != nil {
		return 0, fmt.Errorf("ledger error reading total stake: %w", err)
	}
	if totalBytes == nil {
		return 0, nil
	}
	total, err := strconv.ParseUint(string(totalBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse total stake value '%s': %w", string(totalBytes), err)
	}
	return total, nil
}

func (s *TrustGovSmartContract) setTotalStake(ctx contractapi.TransactionContextInterface, total uint64) error {
	totalKey, err := s.createTotalStakeKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to create total stake key: %w", err)
	}
	return ctx.GetStub().PutState(totalKey, []byte(strconv.FormatUint(total, 10)))
}

// CreditCollateral adds collateral credit to a participant's stake record so
// it can later be staked. Admin only; payment rewards are the other funding path.
func (s *TrustGovSmartContract) CreditCollateral(ctx contractapi.TransactionContextInterface, participant string, amount uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("CreditCollateral: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := s.requireAdmin(ctx, im); err != nil {
		return fmt.Errorf("CreditCollateral: %w", err)
	}
	if amount == 0 {
		return fmt.Errorf("%w: credit amount must be positive", ErrInvalidInput)
	}
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return fmt.Errorf("CreditCollateral: failed to resolve participant '%s': %w", participant, err)
	}
	if _, err := im.GetParticipantInfo(targetFullID); err != nil {
		return fmt.Errorf("CreditCollateral: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("CreditCollateral: failed to get transaction timestamp: %w", err)
	}
	rec, err := s.getStakeRecord(ctx, targetFullID)
	if err != nil {
		return fmt.Errorf("CreditCollateral: %w", err)
	}
	rec.Credit += amount
	rec.LastUpdatedAt = now
	if err := s.putStakeRecord(ctx, rec); err != nil {
		return fmt.Errorf("CreditCollateral: failed to save stake record for '%s': %w", targetFullID, err)
	}

	s.emitGovernanceEvent(ctx, "CollateralCredited", map[string]interface{}{
		"participant": targetFullID,
		"amount":      amount,
		"credit":      rec.Credit,
		"creditedBy":  actor.fullID,
	})
	logger.Infof("Collateral of %d credited to '%s' by admin '%s'", amount, targetFullID, actor.alias)
	return nil
}

// Stake moves collateral credit into elective stake. The caller must hold the
// council role (no admin bypass: stake only counts toward voting power while
// the role is held, so only role holders may build it).
func (s *TrustGovSmartContract) Stake(ctx contractapi.TransactionContextInterface, amount uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("Stake: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	isCouncil, err := im.HasRole(actor.fullID, councilRole)
	if err != nil {
		return fmt.Errorf("Stake: failed to check council role for '%s': %w", actor.fullID, err)
	}
	if !isCouncil {
		return fmt.Errorf("%w: participant '%s' does not hold the '%s' role required to stake", ErrUnauthorized, actor.fullID, councilRole)
	}
	if amount == 0 {
		return fmt.Errorf("%w: stake amount must be positive", ErrInvalidInput)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Stake: failed to get transaction timestamp: %w", err)
	}
	rec, err := s.getStakeRecord(ctx, actor.fullID)
	if err != nil {
		return fmt.Errorf("Stake: %w", err)
	}
	if rec.Credit < amount {
		return fmt.Errorf("%w: insufficient collateral credit, have %d, need %d", ErrInvalidState, rec.Credit, amount)
	}
	rec.Credit -= amount
	rec.Staked += amount
	rec.LastUpdatedAt = now
	if err := s.putStakeRecord(ctx, rec); err != nil {
		return fmt.Errorf("Stake: failed to save stake record for '%s': %w", actor.fullID, err)
	}

	total, err := s.getTotalStake(ctx)
	if err != nil {
		return fmt.Errorf("Stake: %w", err)
	}
	if err := s.setTotalStake(ctx, total+amount); err != nil {
		return fmt.Errorf("Stake: failed to update total stake: %w", err)
	}

	s.emitGovernanceEvent(ctx, "StakeDeposited", map[string]interface{}{
		"participant": actor.fullID,
		"amount":      amount,
		"staked":      rec.Staked,
		"totalStake":  total + amount,
	})
	logger.Infof("Participant '%s' staked %d (now %d staked, %d credit)", actor.alias, amount, rec.Staked, rec.Credit)
	return nil
}

// Unstake moves elective stake back into collateral credit. Allowed even after
// the council role was removed so departing members can exit their position.
func (s *TrustGovSmartContract) Unstake(ctx contractapi.TransactionContextInterface, amount uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("Unstake: failed to get actor info: %w", err)
	}
	if amount == 0 {
		return fmt.Errorf("%w: unstake amount must be positive", ErrInvalidInput)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Unstake: failed to get transaction timestamp: %w", err)
	}
	rec, err := s.getStakeRecord(ctx, actor.fullID)
	if err != nil {
		return fmt.Errorf("Unstake: %w", err)
	}
	if rec.Staked < amount {
		return fmt.Errorf("%w: insufficient stake, have %d, need %d", ErrInvalidState, rec.Staked, amount)
	}
	rec.Staked -= amount
	rec.Credit += amount
	rec.LastUpdatedAt = now
	if err := s.putStakeRecord(ctx, rec); err != nil {
		return fmt.Errorf("Unstake: failed to save stake record for '%s': %w", actor.fullID, err)
	}

	total, err := s.getTotalStake(ctx)
	if err != nil {
		return fmt.Errorf("Unstake: %w", err)
	}
	if total < amount {
		// The accumulator can only drift if state was mutated outside stake ops.
		return fmt.Errorf("%w: total stake accumulator (%d) below unstake amount (%d)", ErrInvalidState, total, amount)
	}
	if err := s.setTotalStake(ctx, total-amount); err != nil {
		return fmt.Errorf("Unstake: failed to update total stake: %w", err)
	}

	s.emitGovernanceEvent(ctx, "StakeWithdrawn", map[string]interface{}{
		"participant": actor.fullID,
		"amount":      amount,
		"staked":      rec.Staked,
		"totalStake":  total - amount,
	})
	logger.Infof("Participant '%s' unstaked %d (now %d staked, %d credit)", actor.alias, amount, rec.Staked, rec.Credit)
	return nil
}

// GetStakeRecord returns a participant's stake record. Zero-valued when the
// participant never staked.
func (s *TrustGovSmartContract) GetStakeRecord(ctx contractapi.TransactionContextInterface, participant string) (*model.StakeRecord, error) {
	logger.Debugf("Chaincode Call: GetStakeRecord for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return nil, fmt.Errorf("GetStakeRecord: failed to resolve participant '%s': %w", participant, err)
	}
	return s.getStakeRecord(ctx, targetFullID)
}

// GetTotalStake returns the running total of staked collateral across all
// participants; this is the quorum denominator.
func (s *TrustGovSmartContract) GetTotalStake(ctx contractapi.TransactionContextInterface) (uint64, error) {
	logger.Debug("Chaincode Call: GetTotalStake")
	return s.getTotalStake(ctx)
}
