package contract

import (
	"encoding/json"
	"fmt"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Payment Ledger Operations ---
// The payment ledger keeps one aggregated PaymentHistory record per
// participant. The reputation aggregator only reads it; recording payments is
// gated to the treasurer role (admins bypass, as everywhere).

func (s *TrustGovSmartContract) getPaymentHistory(ctx contractapi.TransactionContextInterface, fullID string) (*model.PaymentHistory, error) {
	paymentKey, err := s.createParticipantScopedKey(ctx, paymentObjectType, fullID)
	if err != nil {
		return nil, err
	}
	paymentBytes, err := ctx.GetStub().GetState(paymentKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading payment history for '%s': %w", fullID, err)
	}
	if paymentBytes == nil {
		// No payments yet: a zero history, not an error.
		return &model.PaymentHistory{ObjectType: paymentObjectType, Participant: fullID}, nil
	}
	var hist model.PaymentHistory
	if err := json.Unmarshal(paymentBytes, &hist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment history for '%s': %w", fullID, err)
	}
	return &hist, nil
}

func (s *TrustGovSmartContract) putPaymentHistory(ctx contractapi.TransactionContextInterface, hist *model.PaymentHistory) error {
	paymentKey, err := s.createParticipantScopedKey(ctx, paymentObjectType, hist.Participant)
	if err != nil {
		return err
	}
	histBytes, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("failed to marshal payment history for '%s': %w", hist.Participant, err)
	}
	return ctx.GetStub().PutState(paymentKey, histBytes)
}

// RecordPayment appends one payment to a participant's aggregated history.
// On-time payments accrue a reward (rewardRatePercent of the amount) into the
// participant's collateral credit balance. Requires the treasurer role.
func (s *TrustGovSmartContract) RecordPayment(ctx contractapi.TransactionContextInterface,
	participant string, amount uint64, onTime bool) error {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("RecordPayment: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := im.RequireRole("treasurer"); err != nil {
		return fmt.Errorf("RecordPayment: %w", err)
	}

	if amount == 0 {
		return fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return fmt.Errorf("RecordPayment: failed to resolve participant '%s': %w", participant, err)
	}
	if _, err := im.GetParticipantInfo(targetFullID); err != nil {
		return fmt.Errorf("RecordPayment: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RecordPayment: failed to get transaction timestamp: %w", err)
	}

	hist, err := s.getPaymentHistory(ctx, targetFullID)
	if err != nil {
		return fmt.Errorf("RecordPayment: %w", err)
	}
	hist.TotalPayments++
	var reward uint64
	if onTime {
		hist.OnTimePayments++
		cfg, cfgErr := s.getGovernanceConfig(ctx)
		if cfgErr != nil {
			return fmt.Errorf("RecordPayment: %w", cfgErr)
		}
		reward = amount * cfg.RewardRatePercent / 100
		hist.TotalRewardsEarned += reward
	} else {
		hist.OverduePayments++
	}
	hist.LastPaymentDate = now

	if err := s.putPaymentHistory(ctx, hist); err != nil {
		return fmt.Errorf("RecordPayment: failed to save payment history for '%s': %w", targetFullID, err)
	}

	// Rewards fund the collateral credit balance the stake ledger draws from.
	if reward > 0 {
		rec, recErr := s.getStakeRecord(ctx, targetFullID)
		if recErr != nil {
			return fmt.Errorf("RecordPayment: %w", recErr)
		}
		rec.Credit += reward
		rec.LastUpdatedAt = now
		if err := s.putStakeRecord(ctx, rec); err != nil {
			return fmt.Errorf("RecordPayment: failed to credit reward for '%s': %w", targetFullID, err)
		}
	}

	s.emitGovernanceEvent(ctx, "PaymentRecorded", map[string]interface{}{
		"participant":    targetFullID,
		"amount":         amount,
		"onTime":         onTime,
		"reward":         reward,
		"totalPayments":  hist.TotalPayments,
		"onTimePayments": hist.OnTimePayments,
		"recordedBy":     actor.fullID,
		"paymentDate":    now,
	})
	logger.Infof("Payment of %d (onTime=%v) recorded for '%s' by '%s'; reward %d", amount, onTime, targetFullID, actor.alias, reward)
	return nil
}

// GetPaymentHistory returns the aggregated payment record of a participant.
// A participant with no payments gets a zero-valued history.
func (s *TrustGovSmartContract) GetPaymentHistory(ctx contractapi.TransactionContextInterface, participant string) (*model.PaymentHistory, error) {
	logger.Debugf("Chaincode Call: GetPaymentHistory for '%s'", participant)
	im := NewIdentityManager(ctx)
	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentHistory: failed to resolve participant '%s': %w", participant, err)
	}
	return s.getPaymentHistory(ctx, targetFullID)
}
