package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetGovernanceConfigDefaults(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	cfg, err := sc.GetGovernanceConfig(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(7*24*60*60), cfg.VotingDurationSeconds)
	assert.Equal(t, uint64(1000), cfg.MinProposalThreshold)
	assert.Equal(t, uint64(30), cfg.QuorumThresholdPercent)
	assert.Equal(t, uint64(60), cfg.ApprovalThresholdPercent)
	assert.Equal(t, uint64(30), cfg.ProfileWeight)
	assert.Equal(t, uint64(40), cfg.PaymentWeight)
	assert.Equal(t, uint64(30), cfg.CommunityWeight)
	assert.Equal(t, defaultLevelLadder(), cfg.LevelLadder)
	assert.Equal(t, uint64(5), cfg.RewardRatePercent)
}

func TestUpdateGovernanceParams(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()

	err := sc.UpdateGovernanceParams(ctxFor(stub, bobFullID), 3600, 500, 20, 55)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = sc.UpdateGovernanceParams(adminCtx, 0, 500, 20, 55)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	err = sc.UpdateGovernanceParams(adminCtx, 3600, 500, 0, 55)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	err = sc.UpdateGovernanceParams(adminCtx, 3600, 500, 20, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, sc.UpdateGovernanceParams(adminCtx, 3600, 500, 20, 55))
	cfg, err := sc.GetGovernanceConfig(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), cfg.VotingDurationSeconds)
	assert.Equal(t, uint64(500), cfg.MinProposalThreshold)
	assert.Equal(t, uint64(20), cfg.QuorumThresholdPercent)
	assert.Equal(t, uint64(55), cfg.ApprovalThresholdPercent)
	assert.Equal(t, adminFullID, cfg.LastUpdatedBy)
}

func TestUpdateReputationWeightsMustSumToHundred(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	err := sc.UpdateReputationWeights(adminCtx, 30, 40, 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, sc.UpdateReputationWeights(adminCtx, 20, 50, 30))
	cfg, err := sc.GetGovernanceConfig(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), cfg.ProfileWeight)
	assert.Equal(t, uint64(50), cfg.PaymentWeight)
	assert.Equal(t, uint64(30), cfg.CommunityWeight)
}

func TestUpdateLevelLadderValidation(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	err := sc.UpdateLevelLadder(adminCtx, "not json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = sc.UpdateLevelLadder(adminCtx, "[100,200,300]")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	err = sc.UpdateLevelLadder(adminCtx, "[100,200,300,400,500,600,700,800,900,900]")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, sc.UpdateLevelLadder(adminCtx, "[10,20,30,40,50,60,70,80,90,100]"))
	cfg, err := sc.GetGovernanceConfig(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, cfg.LevelLadder)
}

func TestUpdateRewardRateBounds(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	err := sc.UpdateRewardRate(adminCtx, 101)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, sc.UpdateRewardRate(adminCtx, 10))
	cfg, err := sc.GetGovernanceConfig(adminCtx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cfg.RewardRatePercent)
}
