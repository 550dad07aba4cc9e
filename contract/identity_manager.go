package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var idLogger = flogging.MustGetLogger("trustgov.identitymanager")

// Object types for composite keys of the participant registry.
const (
	participantObjectType = "ParticipantInfo" // Stores ParticipantInfo objects. Attribute: FullID.
	aliasObjectType       = "Alias"           // Maps ShortName (alias) to FullID. Attribute: ShortName.
	adminFlagObjectType   = "AdminFlag"       // Stores a flag for admin status. Attribute: FullID.
)

// ValidRoles defines the set of permissible roles in the system.
var ValidRoles = map[string]bool{
	councilRole: true, // elective, stake-bearing role
	"treasurer": true, // may record payments into the payment ledger
	// "admin" is a special status managed by IsAdmin, not a role in this list.
}

// IdentityManager handles participant registration, verification lifecycle,
// role management, and admin privileges. It owns the Identity Ledger records;
// other components read them only through its accessors.
type IdentityManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewIdentityManager creates a new instance of IdentityManager.
func NewIdentityManager(ctx contractapi.TransactionContextInterface) *IdentityManager {
	return &IdentityManager{Ctx: ctx}
}

// --- Internal Helper Functions ---

func (im *IdentityManager) getCurrentTxTimestamp() (time.Time, error) {
	ts, err := im.Ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

func (im *IdentityManager) getListOfValidRoles() []string {
	keys := make([]string, 0, len(ValidRoles))
	for k := range ValidRoles {
		keys = append(keys, k)
	}
	return keys
}

// --- Key Creation Helpers (using Composite Keys) ---

func (im *IdentityManager) createParticipantCompositeKey(fullID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(participantObjectType, []string{fullID})
}

func (im *IdentityManager) createAliasCompositeKey(shortName string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(aliasObjectType, []string{shortName})
}

func (im *IdentityManager) createAdminFlagCompositeKey(fullID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(adminFlagObjectType, []string{fullID})
}

// --- Registration & Resolution ---

// RegisterParticipant records a new participant in PENDING verification state.
// If no admin exists yet this is a bootstrap scenario; once admins exist, only
// admins may register participants.
func (im *IdentityManager) RegisterParticipant(targetFullID, shortName, enrollmentID string) error {
	anyAdminCurrentlyExists, err := im.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("failed to check if any admin exists during RegisterParticipant: %w", err)
	}

	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		idLogger.Warningf("RegisterParticipant: Could not get current caller's FullID: %v", err)
		if anyAdminCurrentlyExists {
			return fmt.Errorf("failed to get current caller's FullID: %w", err)
		}
		callerFullID = "SYSTEM_BOOTSTRAP"
	}

	if anyAdminCurrentlyExists {
		isCallerAdmin, errAdminCheck := im.IsCurrentUserAdmin()
		if errAdminCheck != nil {
			return fmt.Errorf("failed to verify caller admin status for RegisterParticipant: %w", errAdminCheck)
		}
		if !isCallerAdmin {
			return fmt.Errorf("%w: caller '%s' may not register participants, admins already exist", ErrUnauthorized, callerFullID)
		}
	} else {
		idLogger.Infof("RegisterParticipant proceeding in bootstrap mode: Caller assumed '%s'.", callerFullID)
	}

	if !isValidX509ID(targetFullID) {
		return fmt.Errorf("%w: targetFullID '%s' is not a valid X.509 ID format", ErrInvalidInput, targetFullID)
	}
	if strings.TrimSpace(shortName) == "" {
		return fmt.Errorf("%w: shortName cannot be empty", ErrInvalidInput)
	}

	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}

	targetMSPID := ""
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity != nil {
		mspID, mspErr := clientIdentity.GetMSPID()
		if mspErr != nil {
			idLogger.Warningf("Could not determine MSPID for participant %s from caller's context: %v. Storing empty MSPID.", targetFullID, mspErr)
		} else {
			targetMSPID = mspID
		}
	}

	aliasKey, err := im.createAliasCompositeKey(shortName)
	if err != nil {
		return fmt.Errorf("failed to create alias composite key for '%s': %w", shortName, err)
	}
	existingFullIDForAliasBytes, err := im.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return fmt.Errorf("failed to check alias availability for '%s': %w", shortName, err)
	}
	if existingFullIDForAliasBytes != nil && string(existingFullIDForAliasBytes) != targetFullID {
		return fmt.Errorf("%w: shortName (alias) '%s' is already in use by participant '%s'", ErrInvalidInput, shortName, string(existingFullIDForAliasBytes))
	}

	participantKey, err := im.createParticipantCompositeKey(targetFullID)
	if err != nil {
		return fmt.Errorf("failed to create participant composite key for '%s': %w", targetFullID, err)
	}
	participantBytes, err := im.Ctx.GetStub().GetState(participantKey)
	if err != nil {
		return fmt.Errorf("failed to get participant state for '%s': %w", targetFullID, err)
	}

	var pInfo model.ParticipantInfo
	if participantBytes == nil {
		pInfo = model.ParticipantInfo{
			ObjectType:      participantObjectType,
			FullID:          targetFullID,
			ShortName:       shortName,
			EnrollmentID:    enrollmentID,
			OrganizationMSP: targetMSPID,
			Status:          model.VerificationPending,
			ProfileScore:    0,
			Roles:           []string{},
			IsAdmin:         false,
			RegisteredBy:    callerFullID,
			RegisteredAt:    now,
			LastUpdatedAt:   now,
		}
		idLogger.Infof("Registering new participant: %s with alias %s, MSP %s, by %s", targetFullID, shortName, targetMSPID, pInfo.RegisteredBy)
	} else {
		if err := json.Unmarshal(participantBytes, &pInfo); err != nil {
			return fmt.Errorf("failed to unmarshal existing ParticipantInfo for '%s': %w", targetFullID, err)
		}
		if pInfo.ShortName != shortName && pInfo.ShortName != "" {
			oldAliasKey, keyErr := im.createAliasCompositeKey(pInfo.ShortName)
			if keyErr == nil {
				if errDel := im.Ctx.GetStub().DelState(oldAliasKey); errDel != nil {
					idLogger.Warningf("Failed to delete old alias key '%s' for participant '%s': %v", oldAliasKey, targetFullID, errDel)
				}
			}
		}
		pInfo.ShortName = shortName
		pInfo.EnrollmentID = enrollmentID
		pInfo.OrganizationMSP = targetMSPID
		pInfo.LastUpdatedAt = now
		idLogger.Infof("Updating existing participant: %s with new alias %s, MSP %s. Updated by %s", targetFullID, shortName, targetMSPID, callerFullID)
	}

	updatedBytes, err := json.Marshal(pInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal ParticipantInfo for '%s': %w", targetFullID, err)
	}
	if err := im.Ctx.GetStub().PutState(participantKey, updatedBytes); err != nil {
		return fmt.Errorf("failed to save ParticipantInfo for '%s': %w", targetFullID, err)
	}
	if err := im.Ctx.GetStub().PutState(aliasKey, []byte(targetFullID)); err != nil {
		return fmt.Errorf("failed to save alias mapping for '%s' -> '%s': %w", shortName, targetFullID, err)
	}
	return nil
}

// ResolveIdentity resolves a full X.509 ID or alias to a full ID.
func (im *IdentityManager) ResolveIdentity(identityOrAlias string) (string, error) {
	trimmedInput := strings.TrimSpace(identityOrAlias)
	if trimmedInput == "" {
		return "", fmt.Errorf("%w: identityOrAlias cannot be empty", ErrInvalidInput)
	}
	if isValidX509ID(trimmedInput) {
		return trimmedInput, nil
	}
	aliasKey, err := im.createAliasCompositeKey(trimmedInput)
	if err != nil {
		return "", fmt.Errorf("failed to create alias composite key for resolving '%s': %w", trimmedInput, err)
	}
	fullIDBytes, err := im.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return "", fmt.Errorf("ledger error when querying alias '%s': %w", trimmedInput, err)
	}
	if fullIDBytes != nil {
		return string(fullIDBytes), nil
	}
	return "", fmt.Errorf("%w: alias '%s' not found", ErrNotFound, trimmedInput)
}

func (im *IdentityManager) GetParticipantInfo(identityOrAlias string) (*model.ParticipantInfo, error) {
	fullID, err := im.ResolveIdentity(identityOrAlias)
	if err != nil {
		return nil, err
	}
	return im.getParticipantByFullID(fullID)
}

func (im *IdentityManager) getParticipantByFullID(fullID string) (*model.ParticipantInfo, error) {
	if !isValidX509ID(fullID) {
		return nil, fmt.Errorf("%w: '%s' is not a valid X.509 ID format", ErrInvalidInput, fullID)
	}
	participantKey, err := im.createParticipantCompositeKey(fullID)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant composite key for '%s': %w", fullID, err)
	}
	participantBytes, err := im.Ctx.GetStub().GetState(participantKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving ParticipantInfo for FullID '%s': %w", fullID, err)
	}
	if participantBytes == nil {
		return nil, fmt.Errorf("%w: participant record not found for FullID '%s'", ErrNotFound, fullID)
	}
	var pInfo model.ParticipantInfo
	if err := json.Unmarshal(participantBytes, &pInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ParticipantInfo for FullID '%s': %w", fullID, err)
	}
	if pInfo.Roles == nil {
		pInfo.Roles = []string{}
	}
	return &pInfo, nil
}

func (im *IdentityManager) putParticipant(pInfo *model.ParticipantInfo) error {
	participantKey, err := im.createParticipantCompositeKey(pInfo.FullID)
	if err != nil {
		return fmt.Errorf("failed to create participant key for '%s': %w", pInfo.FullID, err)
	}
	updatedBytes, err := json.Marshal(pInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal ParticipantInfo for '%s': %w", pInfo.FullID, err)
	}
	return im.Ctx.GetStub().PutState(participantKey, updatedBytes)
}

// --- Verification Lifecycle ---

// IsVerified reports whether the participant exists and is APPROVED. Unknown
// participants are simply not verified.
func (im *IdentityManager) IsVerified(identityOrAlias string) (bool, error) {
	pInfo, err := im.GetParticipantInfo(identityOrAlias)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error resolving participant '%s' for verification check: %w", identityOrAlias, err)
	}
	return pInfo.IsVerified(), nil
}

// ProfileScore returns the identity-verification score component of a participant.
func (im *IdentityManager) ProfileScore(identityOrAlias string) (uint64, error) {
	pInfo, err := im.GetParticipantInfo(identityOrAlias)
	if err != nil {
		return 0, err
	}
	return pInfo.ProfileScore, nil
}

// ApproveParticipant marks a participant as verified. Direct privileged path:
// requires the caller to be an admin.
func (im *IdentityManager) ApproveParticipant(targetIdentityOrAlias string) error {
	if err := im.requireCallerAdmin("ApproveParticipant"); err != nil {
		return err
	}
	return im.applyVerification(targetIdentityOrAlias, model.VerificationApproved)
}

// SuspendParticipant revokes a participant's verification. Direct privileged
// path: requires the caller to be an admin.
func (im *IdentityManager) SuspendParticipant(targetIdentityOrAlias string) error {
	if err := im.requireCallerAdmin("SuspendParticipant"); err != nil {
		return err
	}
	return im.applyVerification(targetIdentityOrAlias, model.VerificationSuspended)
}

// applyVerification sets the verification status without an admin check. It is
// the shared persistence path for both the direct admin operations above and
// governance-executed APPROVE/SUSPEND proposals, which carry their own
// authorization (a passed vote).
func (im *IdentityManager) applyVerification(targetIdentityOrAlias string, status model.VerificationStatus) error {
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s': %w", targetIdentityOrAlias, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return fmt.Errorf("cannot set verification status: %w", err)
	}
	if pInfo.Status == status {
		idLogger.Infof("Participant '%s' (%s) already has status '%s'. No action needed.", pInfo.ShortName, targetFullID, status)
		return nil
	}
	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}
	pInfo.Status = status
	pInfo.LastUpdatedAt = now
	if err := im.putParticipant(pInfo); err != nil {
		return fmt.Errorf("failed to save ParticipantInfo after status change for '%s': %w", targetFullID, err)
	}
	idLogger.Infof("Participant '%s' (%s) verification status set to '%s'.", pInfo.ShortName, targetFullID, status)
	return nil
}

// UpdateProfileScore sets the profile score component. Admin-gated; the score
// feeds into reputation only at the next explicit recomputation.
func (im *IdentityManager) UpdateProfileScore(targetIdentityOrAlias string, score uint64) error {
	if err := im.requireCallerAdmin("UpdateProfileScore"); err != nil {
		return err
	}
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s': %w", targetIdentityOrAlias, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return fmt.Errorf("cannot update profile score: %w", err)
	}
	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}
	pInfo.ProfileScore = score
	pInfo.LastUpdatedAt = now
	if err := im.putParticipant(pInfo); err != nil {
		return fmt.Errorf("failed to save ParticipantInfo after profile score update for '%s': %w", targetFullID, err)
	}
	idLogger.Infof("Profile score of participant '%s' (%s) set to %d.", pInfo.ShortName, targetFullID, score)
	return nil
}

// --- Role Management ---

// AssignRole grants a role. Direct privileged path: requires an admin caller.
func (im *IdentityManager) AssignRole(targetIdentityOrAlias, role string) error {
	if err := im.requireCallerAdmin("AssignRole"); err != nil {
		return err
	}
	return im.grantRole(targetIdentityOrAlias, role)
}

// RemoveRole revokes a role. Direct privileged path: requires an admin caller.
func (im *IdentityManager) RemoveRole(targetIdentityOrAlias, role string) error {
	if err := im.requireCallerAdmin("RemoveRole"); err != nil {
		return err
	}
	return im.revokeRole(targetIdentityOrAlias, role)
}

// grantRole adds a role without an admin check; shared by the direct path and
// governance-executed role proposals.
func (im *IdentityManager) grantRole(targetIdentityOrAlias, role string) error {
	roleLower := strings.ToLower(strings.TrimSpace(role))
	if !ValidRoles[roleLower] {
		return fmt.Errorf("%w: invalid role '%s'. Valid roles are: %v", ErrInvalidInput, role, im.getListOfValidRoles())
	}
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s' for role grant: %w", targetIdentityOrAlias, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return fmt.Errorf("cannot grant role: target participant must be registered first: %w", err)
	}
	for _, existingRole := range pInfo.Roles {
		if existingRole == roleLower {
			idLogger.Infof("Role '%s' already assigned to participant '%s' (%s). No action needed.", roleLower, pInfo.ShortName, targetFullID)
			return nil
		}
	}
	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}
	pInfo.Roles = append(pInfo.Roles, roleLower)
	pInfo.LastUpdatedAt = now
	if err := im.putParticipant(pInfo); err != nil {
		return fmt.Errorf("failed to save ParticipantInfo after role grant for '%s': %w", targetFullID, err)
	}
	idLogger.Infof("Role '%s' granted to participant '%s' (%s).", roleLower, pInfo.ShortName, targetFullID)
	return nil
}

// revokeRole removes a role without an admin check; shared by the direct path
// and governance-executed role proposals.
func (im *IdentityManager) revokeRole(targetIdentityOrAlias, role string) error {
	roleLower := strings.ToLower(strings.TrimSpace(role))
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s' for role removal: %w", targetIdentityOrAlias, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return fmt.Errorf("cannot remove role: target participant not found: %w", err)
	}
	found := false
	newRoles := []string{}
	for _, r := range pInfo.Roles {
		if r == roleLower {
			found = true
		} else {
			newRoles = append(newRoles, r)
		}
	}
	if !found {
		idLogger.Infof("Role '%s' not found for participant '%s' (%s). No action taken.", roleLower, pInfo.ShortName, targetFullID)
		return nil
	}
	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}
	pInfo.Roles = newRoles
	pInfo.LastUpdatedAt = now
	if err := im.putParticipant(pInfo); err != nil {
		return fmt.Errorf("failed to save ParticipantInfo after role removal for '%s': %w", targetFullID, err)
	}
	idLogger.Infof("Role '%s' removed from participant '%s' (%s).", roleLower, pInfo.ShortName, targetFullID)
	return nil
}

func (im *IdentityManager) HasRole(identityOrAlias, role string) (bool, error) {
	pInfo, err := im.GetParticipantInfo(identityOrAlias)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error resolving participant '%s' to check role: %w", identityOrAlias, err)
	}
	roleLower := strings.ToLower(strings.TrimSpace(role))
	for _, r := range pInfo.Roles {
		if r == roleLower {
			return true, nil
		}
	}
	return false, nil
}

// RequireRole checks that the caller holds the given role. Admins bypass the
// role requirement.
func (im *IdentityManager) RequireRole(requiredRole string) error {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get current user's FullID for RequireRole: %w", err)
	}
	isAdmin, err := im.IsAdmin(callerFullID)
	if err != nil {
		return fmt.Errorf("failed to check current user '%s' admin status for RequireRole: %w", callerFullID, err)
	}
	if isAdmin {
		idLogger.Debugf("Admin user '%s' authorized for role '%s' check (bypassed role requirement).", callerFullID, requiredRole)
		return nil
	}
	has, err := im.HasRole(callerFullID, requiredRole)
	if err != nil {
		return fmt.Errorf("error checking role '%s' for current user '%s': %w", requiredRole, callerFullID, err)
	}
	if !has {
		return fmt.Errorf("%w: participant '%s' does not have required role '%s'", ErrUnauthorized, callerFullID, requiredRole)
	}
	return nil
}

// --- Admin Management ---

// MakeAdmin grants admin status. Direct privileged path; also serves the
// bootstrap scenario for the first admin when none exist yet.
func (im *IdentityManager) MakeAdmin(targetIdentityOrAlias string) error {
	anyAdminExists, err := im.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("failed to check if any admin exists for MakeAdmin: %w", err)
	}
	callerFullID := MustGetCallerFullID(im.Ctx)
	if anyAdminExists {
		isCallerAdmin, errAdm := im.IsAdmin(callerFullID)
		if errAdm != nil {
			return fmt.Errorf("failed to verify caller '%s' admin status for MakeAdmin: %w", callerFullID, errAdm)
		}
		if !isCallerAdmin {
			return fmt.Errorf("%w: caller '%s' may not make others admin", ErrUnauthorized, callerFullID)
		}
	} else {
		idLogger.Infof("No admins exist. Bootstrap: Caller '%s' is making target '%s' an admin.", callerFullID, targetIdentityOrAlias)
	}
	return im.setAdminStatus(targetIdentityOrAlias, true)
}

// RemoveAdmin revokes admin status. Direct privileged path; admins cannot
// remove their own status.
func (im *IdentityManager) RemoveAdmin(targetIdentityOrAlias string) error {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller's FullID for RemoveAdmin: %w", err)
	}
	isCallerAdmin, err := im.IsAdmin(callerFullID)
	if err != nil {
		return fmt.Errorf("failed to verify caller '%s' admin status for RemoveAdmin: %w", callerFullID, err)
	}
	if !isCallerAdmin {
		return fmt.Errorf("%w: caller '%s' may not remove admin privileges", ErrUnauthorized, callerFullID)
	}
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s' to remove admin: %w", targetIdentityOrAlias, err)
	}
	if targetFullID == callerFullID {
		return fmt.Errorf("%w: admins cannot remove their own admin status", ErrInvalidState)
	}
	return im.setAdminStatus(targetFullID, false)
}

// setAdminStatus flips both the ParticipantInfo flag and the authoritative
// AdminFlag record. Shared by the direct path and governance-executed
// ADD_ADMIN/REMOVE_ADMIN proposals.
func (im *IdentityManager) setAdminStatus(targetIdentityOrAlias string, admin bool) error {
	targetFullID, err := im.ResolveIdentity(targetIdentityOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target participant '%s' for admin status change: %w", targetIdentityOrAlias, err)
	}
	pInfo, err := im.getParticipantByFullID(targetFullID)
	if err != nil {
		return fmt.Errorf("cannot change admin status: target participant must be registered first: %w", err)
	}
	adminFlagKey, err := im.createAdminFlagCompositeKey(targetFullID)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", targetFullID, err)
	}
	if pInfo.IsAdmin != admin {
		now, tsErr := im.getCurrentTxTimestamp()
		if tsErr != nil {
			return tsErr
		}
		pInfo.IsAdmin = admin
		pInfo.LastUpdatedAt = now
		if err := im.putParticipant(pInfo); err != nil {
			return fmt.Errorf("failed to save ParticipantInfo after admin status change for '%s': %w", targetFullID, err)
		}
	}
	// The AdminFlag record is authoritative; keep it consistent either way.
	if admin {
		if err := im.Ctx.GetStub().PutState(adminFlagKey, []byte("true")); err != nil {
			return fmt.Errorf("failed to set admin flag for '%s': %w", targetFullID, err)
		}
	} else {
		if err := im.Ctx.GetStub().DelState(adminFlagKey); err != nil {
			return fmt.Errorf("failed to clear admin flag for '%s': %w", targetFullID, err)
		}
	}
	idLogger.Infof("Participant '%s' (%s) admin status set to %v.", pInfo.ShortName, targetFullID, admin)
	return nil
}

// IsAdmin checks admin privileges based on the authoritative AdminFlag record.
func (im *IdentityManager) IsAdmin(identityOrAlias string) (bool, error) {
	fullID, err := im.ResolveIdentity(identityOrAlias)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error resolving participant '%s' for IsAdmin check: %w", identityOrAlias, err)
	}
	adminFlagKey, err := im.createAdminFlagCompositeKey(fullID)
	if err != nil {
		return false, fmt.Errorf("failed to create admin flag key for IsAdmin check on '%s': %w", fullID, err)
	}
	flagBytes, err := im.Ctx.GetStub().GetState(adminFlagKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking admin flag for '%s': %w", fullID, err)
	}
	return flagBytes != nil && string(flagBytes) == "true", nil
}

func (im *IdentityManager) IsCurrentUserAdmin() (bool, error) {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return false, fmt.Errorf("failed to get current user's FullID for admin check: %w", err)
	}
	return im.IsAdmin(callerFullID)
}

func (im *IdentityManager) requireCallerAdmin(op string) error {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller's FullID for %s: %w", op, err)
	}
	isCallerAdmin, err := im.IsAdmin(callerFullID)
	if err != nil {
		return fmt.Errorf("failed to verify caller admin status for %s: %w", op, err)
	}
	if !isCallerAdmin {
		return fmt.Errorf("%w: caller '%s' is not authorized for %s", ErrUnauthorized, callerFullID, op)
	}
	return nil
}

// AnyAdminExists checks if any admin flag is set on the ledger.
func (im *IdentityManager) AnyAdminExists() (bool, error) {
	iterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return false, fmt.Errorf("failed to query admin records for AnyAdminExists: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (im *IdentityManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", fmt.Errorf("%w: client identity is nil from context", ErrUnauthorized)
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: client identity ID from context is empty", ErrUnauthorized)
	}
	if !isValidX509ID(id) {
		idLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// MustGetCallerFullID is a utility to get the caller's ID, returning a
// placeholder on error. Useful for logging when a full error return isn't desired.
func MustGetCallerFullID(ctx contractapi.TransactionContextInterface) string {
	clientIdentity := ctx.GetClientIdentity()
	if clientIdentity == nil {
		idLogger.Error("MustGetCallerFullID: Client identity is nil from context. Returning placeholder.")
		return "ERROR_NIL_CLIENT_IDENTITY"
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		idLogger.Errorf("MustGetCallerFullID: Failed to get client identity ID: %v. Returning placeholder.", err)
		return "ERROR_GETTING_CALLER_ID"
	}
	if id == "" {
		idLogger.Error("MustGetCallerFullID: Client identity ID from context is empty. Returning placeholder.")
		return "ERROR_EMPTY_CALLER_ID"
	}
	return id
}

// GetAllRegisteredParticipants lists the full registry. Admin only.
func (im *IdentityManager) GetAllRegisteredParticipants() ([]model.ParticipantInfo, error) {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get caller's FullID for GetAllRegisteredParticipants: %w", err)
	}
	isCallerAdmin, err := im.IsAdmin(callerFullID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify caller '%s' admin status for GetAllRegisteredParticipants: %w", callerFullID, err)
	}
	if !isCallerAdmin {
		return nil, fmt.Errorf("%w: caller '%s' may not list all participants", ErrUnauthorized, callerFullID)
	}

	resultsIterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(participantObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get participants iterator using objectType '%s': %w", participantObjectType, err)
	}
	defer resultsIterator.Close()

	participants := []model.ParticipantInfo{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			idLogger.Warningf("Failed to get next participant from iterator: %v. Skipping.", iterErr)
			continue
		}
		var pInfo model.ParticipantInfo
		if err := json.Unmarshal(queryResponse.Value, &pInfo); err != nil {
			idLogger.Warningf("Failed to unmarshal participant data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if pInfo.Roles == nil {
			pInfo.Roles = []string{}
		}
		participants = append(participants, pInfo)
	}
	idLogger.Infof("Admin '%s' retrieved %d registered participants.", callerFullID, len(participants))
	return participants, nil
}
