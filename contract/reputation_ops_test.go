package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgov/model"
)

func TestPaymentScoreTiers(t *testing.T) {
	cases := []struct {
		name     string
		total    uint64
		onTime   uint64
		expected uint64
	}{
		{"no payments", 0, 0, 0},
		{"perfect record doubles", 10, 10, 200},
		{"ninety percent doubles", 10, 9, 200},
		{"eighty percent", 10, 8, 150},
		{"seventy percent", 10, 7, 120},
		{"below seventy unscaled", 10, 6, 100},
		{"single overdue payment", 1, 0, 10},
		{"truncation after scaling", 3, 3, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hist := &model.PaymentHistory{TotalPayments: tc.total, OnTimePayments: tc.onTime}
			assert.Equal(t, tc.expected, paymentScoreFor(hist))
		})
	}
}

func TestCommunityScore(t *testing.T) {
	assert.Equal(t, uint64(0), communityScoreFor(nil))
	assert.Equal(t, uint64(0), communityScoreFor(&model.CommunityStats{}))
	assert.Equal(t, uint64(50), communityScoreFor(&model.CommunityStats{ProposalsCreated: 1}))
	assert.Equal(t, uint64(10), communityScoreFor(&model.CommunityStats{VotesCast: 1}))
	assert.Equal(t, uint64(170), communityScoreFor(&model.CommunityStats{ProposalsCreated: 3, VotesCast: 2}))
}

func TestLevelForScore(t *testing.T) {
	ladder := defaultLevelLadder()
	cases := []struct {
		score uint64
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{349, 3},
		{350, 4},
		{2499, 10},
		{2500, 10},
		{999999, 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, levelForScore(tc.score, ladder), "score %d", tc.score)
	}
}

func TestRecomputeReputationWeightedTotal(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	require.NoError(t, registerApproved(sc, adminCtx, treasurerFullID, "treasurer"))
	require.NoError(t, sc.AssignRoleToParticipant(adminCtx, "treasurer", "treasurer"))

	require.NoError(t, sc.UpdateProfileScore(adminCtx, "alice", 1000))
	treasurerCtx := ctxFor(stub, treasurerFullID)
	for i := 0; i < 10; i++ {
		require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 100, true))
	}

	metrics, err := sc.RecomputeReputation(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), metrics.ProfileScore)
	assert.Equal(t, uint64(200), metrics.PaymentScore) // 10 payments, all on time
	assert.Equal(t, uint64(0), metrics.CommunityScore)
	// Default weights 30/40/30: 1000*30/100 + 200*40/100 = 300 + 80
	assert.Equal(t, uint64(380), metrics.TotalScore)
	assert.Equal(t, 4, metrics.Level) // 380 falls under threshold 500
}

func TestRecomputeReputationRequiresVerification(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, sc.RegisterParticipant(adminCtx, aliceFullID, "alice", "alice"))

	_, err := sc.RecomputeReputation(adminCtx, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRecomputeReputationIdempotent(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	require.NoError(t, sc.UpdateProfileScore(adminCtx, "alice", 700))

	first, err := sc.RecomputeReputation(adminCtx, "alice")
	require.NoError(t, err)
	second, err := sc.RecomputeReputation(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.Level, second.Level)
}

func TestGetReputationMetricsBeforeFirstRecompute(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	metrics, err := sc.GetReputationMetrics(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), metrics.TotalScore)
	assert.Equal(t, 1, metrics.Level)
	assert.True(t, metrics.LastUpdated.IsZero())
}

func TestRecomputeReputationUsesUpdatedWeights(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	require.NoError(t, sc.UpdateProfileScore(adminCtx, "alice", 1000))
	require.NoError(t, sc.UpdateReputationWeights(adminCtx, 100, 0, 0))

	metrics, err := sc.RecomputeReputation(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), metrics.TotalScore)
}
