package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgov/model"
)

func TestBootstrapLedgerCreatesFirstAdmin(t *testing.T) {
	sc := &TrustGovSmartContract{}
	stub := newMockStub()
	adminCtx := ctxFor(stub, adminFullID)

	require.NoError(t, sc.BootstrapLedger(adminCtx))

	pInfo, err := sc.GetParticipantDetails(adminCtx, adminFullID)
	require.NoError(t, err)
	assert.True(t, pInfo.IsAdmin)
	assert.Equal(t, model.VerificationApproved, pInfo.Status)
	assert.Equal(t, "admin", pInfo.ShortName)

	isAdmin, err := NewIdentityManager(adminCtx).IsAdmin(adminFullID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestBootstrapLedgerRefusesSecondRun(t *testing.T) {
	sc, stub, _ := setupBootstrapped()

	err := sc.BootstrapLedger(ctxFor(stub, bobFullID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRegisterParticipantRequiresAdminOnceAdminsExist(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()

	require.NoError(t, sc.RegisterParticipant(adminCtx, aliceFullID, "alice", "alice"))

	err := sc.RegisterParticipant(ctxFor(stub, bobFullID), carolFullID, "carol", "carol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterParticipantStartsPending(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	require.NoError(t, sc.RegisterParticipant(adminCtx, aliceFullID, "alice", "alice"))

	pInfo, err := sc.GetParticipantDetails(adminCtx, aliceFullID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationPending, pInfo.Status)
	assert.False(t, pInfo.IsVerified())
}

func TestRegisterParticipantRejectsAliasConflict(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	require.NoError(t, sc.RegisterParticipant(adminCtx, aliceFullID, "alice", "alice"))

	err := sc.RegisterParticipant(adminCtx, bobFullID, "alice", "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterParticipantRejectsMalformedFullID(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	err := sc.RegisterParticipant(adminCtx, "not-an-x509-id", "alice", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApproveParticipantAdminGated(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, sc.RegisterParticipant(adminCtx, aliceFullID, "alice", "alice"))
	require.NoError(t, sc.RegisterParticipant(adminCtx, bobFullID, "bob", "bob"))

	err := sc.ApproveParticipant(ctxFor(stub, bobFullID), aliceFullID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, sc.ApproveParticipant(adminCtx, aliceFullID))
	verified, err := NewIdentityManager(adminCtx).IsVerified(aliceFullID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestSuspendParticipantRevokesVerification(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	require.NoError(t, sc.SuspendParticipant(adminCtx, "alice"))

	pInfo, err := sc.GetParticipantDetails(adminCtx, aliceFullID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationSuspended, pInfo.Status)
	assert.False(t, pInfo.IsVerified())
}

func TestAliasResolution(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	pInfo, err := sc.GetParticipantDetails(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, aliceFullID, pInfo.FullID)

	_, err = sc.GetParticipantDetails(adminCtx, "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignRoleValidation(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	err := sc.AssignRoleToParticipant(adminCtx, "alice", "overlord")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, sc.AssignRoleToParticipant(adminCtx, "alice", "council"))
	has, err := NewIdentityManager(adminCtx).HasRole(aliceFullID, "council")
	require.NoError(t, err)
	assert.True(t, has)

	// Granting twice is a no-op, not an error.
	require.NoError(t, sc.AssignRoleToParticipant(adminCtx, "alice", "council"))
	pInfo, err := sc.GetParticipantDetails(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"council"}, pInfo.Roles)
}

func TestRemoveRole(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	require.NoError(t, sc.AssignRoleToParticipant(adminCtx, "alice", "council"))

	require.NoError(t, sc.RemoveRoleFromParticipant(adminCtx, "alice", "council"))
	has, err := NewIdentityManager(adminCtx).HasRole(aliceFullID, "council")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRemoveAdminForbidsSelfRemoval(t *testing.T) {
	sc, _, adminCtx := setupBootstrapped()

	err := sc.RemoveParticipantAdmin(adminCtx, adminFullID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMakeAndRemoveAdmin(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	err := sc.MakeParticipantAdmin(ctxFor(stub, bobFullID), aliceFullID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, sc.MakeParticipantAdmin(adminCtx, "alice"))
	im := NewIdentityManager(adminCtx)
	isAdmin, err := im.IsAdmin(aliceFullID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	require.NoError(t, sc.RemoveParticipantAdmin(adminCtx, "alice"))
	isAdmin, err = im.IsAdmin(aliceFullID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestGetParticipantDetailsSelfOrAdminOnly(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))
	require.NoError(t, registerApproved(sc, adminCtx, bobFullID, "bob"))

	aliceCtx := ctxFor(stub, aliceFullID)
	pInfo, err := sc.GetParticipantDetails(aliceCtx, aliceFullID)
	require.NoError(t, err)
	assert.Equal(t, "alice", pInfo.ShortName)

	_, err = sc.GetParticipantDetails(aliceCtx, bobFullID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetAllParticipantsAdminOnly(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	_, err := sc.GetAllParticipants(ctxFor(stub, aliceFullID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	participants, err := sc.GetAllParticipants(adminCtx)
	require.NoError(t, err)
	assert.Len(t, participants, 2) // bootstrap admin + alice
}

func TestUpdateProfileScore(t *testing.T) {
	sc, stub, adminCtx := setupBootstrapped()
	require.NoError(t, registerApproved(sc, adminCtx, aliceFullID, "alice"))

	err := sc.UpdateProfileScore(ctxFor(stub, aliceFullID), "alice", 500)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, sc.UpdateProfileScore(adminCtx, "alice", 500))
	pInfo, err := sc.GetParticipantDetails(adminCtx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), pInfo.ProfileScore)
}

func TestIsVerifiedUnknownParticipant(t *testing.T) {
	_, _, adminCtx := setupBootstrapped()

	verified, err := NewIdentityManager(adminCtx).IsVerified(bobFullID)
	require.NoError(t, err)
	assert.False(t, verified)
}
