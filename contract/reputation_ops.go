package contract

import (
	"encoding/json"
	"fmt"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Reputation Aggregator Operations ---
// ReputationMetrics change only through RecomputeReputation; nothing in the
// system refreshes them implicitly. Staleness is observable via LastUpdated.

func (s *TrustGovSmartContract) getReputationMetrics(ctx contractapi.TransactionContextInterface, fullID string) (*model.ReputationMetrics, error) {
	metricsKey, err := s.createParticipantScopedKey(ctx, metricsObjectType, fullID)
	if err != nil {
		return nil, err
	}
	metricsBytes, err := ctx.GetStub().GetState(metricsKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading reputation metrics for '%s': %w", fullID, err)
	}
	if metricsBytes == nil {
		// Never recomputed: zero metrics with zero LastUpdated, not an error.
		return &model.ReputationMetrics{ObjectType: metricsObjectType, Participant: fullID, Level: 1}, nil
	}
	var metrics model.ReputationMetrics
	if err := json.Unmarshal(metricsBytes, &metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reputation metrics for '%s': %w", fullID, err)
	}
	return &metrics, nil
}

func (s *TrustGovSmartContract) putReputationMetrics(ctx contractapi.TransactionContextInterface, metrics *model.ReputationMetrics) error {
	metricsKey, err := s.createParticipantScopedKey(ctx, metricsObjectType, metrics.Participant)
	if err != nil {
		return err
	}
	metricsBytes, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal reputation metrics for '%s': %w", metrics.Participant, err)
	}
	return ctx.GetStub().PutState(metricsKey, metricsBytes)
}

func (s *TrustGovSmartContract) getCommunityStats(ctx contractapi.TransactionContextInterface, fullID string) (*model.CommunityStats, error) {
	statsKey, err := s.createParticipantScopedKey(ctx, communityStatsObjectType, fullID)
	if err != nil {
		return nil, err
	}
	statsBytes, err := ctx.GetStub().GetState(statsKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading community stats for '%s': %w", fullID, err)
	}
	if statsBytes == nil {
		return &model.CommunityStats{ObjectType: communityStatsObjectType, Participant: fullID}, nil
	}
	var stats model.CommunityStats
	if err := json.Unmarshal(statsBytes, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal community stats for '%s': %w", fullID, err)
	}
	return &stats, nil
}

func (s *TrustGovSmartContract) putCommunityStats(ctx contractapi.TransactionContextInterface, stats *model.CommunityStats) error {
	statsKey, err := s.createParticipantScopedKey(ctx, communityStatsObjectType, stats.Participant)
	if err != nil {
		return err
	}
	statsBytes, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal community stats for '%s': %w", stats.Participant, err)
	}
	return ctx.GetStub().PutState(statsKey, statsBytes)
}

// paymentScoreFor derives the payment component: zero without payments,
// otherwise totalPayments*10 scaled by the on-time-rate tier with integer
// truncation after multiplication.
func paymentScoreFor(hist *model.PaymentHistory) uint64 {
	if hist == nil || hist.TotalPayments == 0 {
		return 0
	}
	base := hist.TotalPayments * 10
	rate := hist.OnTimePayments * 100 / hist.TotalPayments
	switch {
	case rate >= 90:
		return base * 2
	case rate >= 80:
		return base * 15 / 10
	case rate >= 70:
		return base * 12 / 10
	default:
		return base
	}
}

// communityScoreFor derives the community component from the incrementally
// maintained activity counters: 50 per proposal authored, 10 per vote cast.
func communityScoreFor(stats *model.CommunityStats) uint64 {
	if stats == nil {
		return 0
	}
	return 50*stats.ProposalsCreated + 10*stats.VotesCast
}

// levelForScore maps a total score onto the ladder: the level is the index of
// the first threshold the score falls under, clamped to the top level.
func levelForScore(totalScore uint64, ladder []uint64) int {
	for i, threshold := range ladder {
		if totalScore < threshold {
			return i + 1
		}
	}
	return levelLadderSize
}

// RecomputeReputation recalculates and persists a participant's reputation
// metrics from the current profile score, payment history and community
// activity counters. Fails Unauthorized unless the participant is verified.
func (s *TrustGovSmartContract) RecomputeReputation(ctx contractapi.TransactionContextInterface, participant string) (*model.ReputationMetrics, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)

	targetFullID, err := im.ResolveIdentity(participant)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: failed to resolve participant '%s': %w", participant, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: %w", err)
	}
	if !pInfo.IsVerified() {
		return nil, fmt.Errorf("%w: participant '%s' is not verified", ErrUnauthorized, targetFullID)
	}

	cfg, err := s.getGovernanceConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: %w", err)
	}
	hist, err := s.getPaymentHistory(ctx, targetFullID)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: %w", err)
	}
	stats, err := s.getCommunityStats(ctx, targetFullID)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: %w", err)
	}
	old, err := s.getReputationMetrics(ctx, targetFullID)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecomputeReputation: failed to get transaction timestamp: %w", err)
	}

	profileScore := pInfo.ProfileScore
	paymentScore := paymentScoreFor(hist)
	communityScore := communityScoreFor(stats)
	totalScore := profileScore*cfg.ProfileWeight/100 + paymentScore*cfg.PaymentWeight/100 + communityScore*cfg.CommunityWeight/100

	metrics := &model.ReputationMetrics{
		ObjectType:     metricsObjectType,
		Participant:    targetFullID,
		ProfileScore:   profileScore,
		PaymentScore:   paymentScore,
		CommunityScore: communityScore,
		TotalScore:     totalScore,
		Level:          levelForScore(totalScore, cfg.LevelLadder),
		LastUpdated:    now,
	}
	if err := s.putReputationMetrics(ctx, metrics); err != nil {
		return nil, fmt.Errorf("RecomputeReputation: failed to save metrics for '%s': %w", targetFullID, err)
	}

	s.emitGovernanceEvent(ctx, "ReputationRecomputed", map[string]interface{}{
		"participant": targetFullID,
		"oldScore":    old.TotalScore,
		"newScore":    metrics.TotalScore,
		"oldLevel":    old.Level,
		"newLevel":    metrics.Level,
		"recomputedBy": actor.fullID,
	})
	logger.Infof("Reputation recomputed for '%s' by '%s': score %d -> %d, level %d -> %d",
		targetFullID, actor.alias, old.TotalScore, metrics.TotalScore, old.Level, metrics.Level)
	return metrics, nil
}
