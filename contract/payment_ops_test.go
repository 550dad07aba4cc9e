package contract

import (
	"testing"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWithTreasurer(t *testing.T) (*TrustGovSmartContract, *mockStub, *contractapi.TransactionContext, *contractapi.TransactionContext) {
	t.Helper()
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, treasurerFullID, "treasurer"))
	require.NoError(t, sc.AssignRoleToParticipant(adminCtx, "treasurer", "treasurer"))
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	return sc, stub, adminCtx, ctxFor(stub, treasurerFullID)
}

func TestRecordPaymentRequiresTreasurerRole(t *testing.T) {
	sc, stub, _, treasurerCtx := setupWithTreasurer(t)

	err := sc.RecordPayment(ctxFor(stub, aliceFullID), "alice", 100, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 100, true))
}

func TestRecordPaymentAdminBypassesRole(t *testing.T) {
	sc, _, adminCtx, _ := setupWithTreasurer(t)

	require.NoError(t, sc.RecordPayment(adminCtx, "alice", 100, true))
}

func TestRecordPaymentValidation(t *testing.T) {
	sc, _, _, treasurerCtx := setupWithTreasurer(t)

	err := sc.RecordPayment(treasurerCtx, "alice", 0, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = sc.RecordPayment(treasurerCtx, "nobody", 100, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPaymentCounters(t *testing.T) {
	sc, _, _, treasurerCtx := setupWithTreasurer(t)

	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 100, true))
	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 200, true))
	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 300, false))

	hist, err := sc.GetPaymentHistory(treasurerCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), hist.TotalPayments)
	assert.Equal(t, uint64(2), hist.OnTimePayments)
	assert.Equal(t, uint64(1), hist.OverduePayments)
	assert.False(t, hist.LastPaymentDate.IsZero())
}

func TestRecordPaymentOnTimeRewardFundsCollateral(t *testing.T) {
	sc, _, adminCtx, treasurerCtx := setupWithTreasurer(t)

	// Default reward rate is 5%: a 1000 on-time payment credits 50.
	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 1000, true))

	hist, err := sc.GetPaymentHistory(treasurerCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), hist.TotalRewardsEarned)

	rec, err := sc.GetStakeRecord(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), rec.Credit)

	// Overdue payments earn nothing.
	require.NoError(t, sc.RecordPayment(treasurerCtx, "alice", 1000, false))
	hist, err = sc.GetPaymentHistory(treasurerCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), hist.TotalRewardsEarned)
}

func TestGetPaymentHistoryZeroValuedWithoutPayments(t *testing.T) {
	sc, _, adminCtx, _ := setupWithTreasurer(t)

	hist, err := sc.GetPaymentHistory(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hist.TotalPayments)
	assert.True(t, hist.LastPaymentDate.IsZero())
}
