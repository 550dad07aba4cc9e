package contract

import (
	"encoding/json"
	"fmt"
	"trustgov/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("trustgov.governancecontract")

// Object types used for composite keys, also usable as 'docType' for CouchDB queries.
const (
	proposalObjectType       = "Proposal"
	metricsObjectType        = "ReputationMetrics"
	paymentObjectType        = "PaymentHistory"
	communityStatsObjectType = "CommunityStats"
	stakeObjectType          = "StakeRecord"
	configObjectType         = "GovernanceConfig"
	counterObjectType        = "Counter"
)

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxDescriptionLength = 1024
	maxMetadataLength    = 2048
)

// councilRole is the elective role whose holders may stake collateral; stake
// counts toward voting power only while the role is held.
const councilRole = "council"

// TrustGovSmartContract provides functions for participant reputation and
// governance proposal management.
// @contract:TrustGovSmartContract
type TrustGovSmartContract struct {
	contractapi.Contract
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	alias  string
	mspID  string
}

// Instantiate is called during chaincode instantiation.
func (s *TrustGovSmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("TrustGovSmartContract Instantiated/Upgraded")
}

// --- Identity & Role Management Wrappers (Delegating to IdentityManager) ---
// Direct pass-throughs or simple wrappers keeping the contract API clean.
// These are the privileged direct mutation path; the governance state machine
// mutates the same records through its own dispatch path on proposal execution.

func (s *TrustGovSmartContract) RegisterParticipant(ctx contractapi.TransactionContextInterface, targetFullID, shortName, enrollmentID string) error {
	logger.Infof("Chaincode Call: RegisterParticipant for '%s' with alias '%s'", targetFullID, shortName)
	return NewIdentityManager(ctx).RegisterParticipant(targetFullID, shortName, enrollmentID)
}

func (s *TrustGovSmartContract) ApproveParticipant(ctx contractapi.TransactionContextInterface, identityOrAlias string) error {
	logger.Infof("Chaincode Call: ApproveParticipant for '%s'", identityOrAlias)
	return NewIdentityManager(ctx).ApproveParticipant(identityOrAlias)
}

func (s *TrustGovSmartContract) SuspendParticipant(ctx contractapi.TransactionContextInterface, identityOrAlias string) error {
	logger.Infof("Chaincode Call: SuspendParticipant for '%s'", identityOrAlias)
	return NewIdentityManager(ctx).SuspendParticipant(identityOrAlias)
}

func (s *TrustGovSmartContract) AssignRoleToParticipant(ctx contractapi.TransactionContextInterface, identityOrAlias, role string) error {
	logger.Infof("Chaincode Call: AssignRole '%s' to '%s'", role, identityOrAlias)
	return NewIdentityManager(ctx).AssignRole(identityOrAlias, role)
}

func (s *TrustGovSmartContract) RemoveRoleFromParticipant(ctx contractapi.TransactionContextInterface, identityOrAlias, role string) error {
	logger.Infof("Chaincode Call: RemoveRole '%s' from '%s'", role, identityOrAlias)
	return NewIdentityManager(ctx).RemoveRole(identityOrAlias, role)
}

func (s *TrustGovSmartContract) MakeParticipantAdmin(ctx contractapi.TransactionContextInterface, identityOrAlias string) error {
	logger.Infof("Chaincode Call: MakeAdmin for '%s'", identityOrAlias)
	return NewIdentityManager(ctx).MakeAdmin(identityOrAlias)
}

func (s *TrustGovSmartContract) RemoveParticipantAdmin(ctx contractapi.TransactionContextInterface, identityOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveAdmin for '%s'", identityOrAlias)
	return NewIdentityManager(ctx).RemoveAdmin(identityOrAlias)
}

func (s *TrustGovSmartContract) UpdateProfileScore(ctx contractapi.TransactionContextInterface, identityOrAlias string, score uint64) error {
	logger.Infof("Chaincode Call: UpdateProfileScore for '%s' to %d", identityOrAlias, score)
	return NewIdentityManager(ctx).UpdateProfileScore(identityOrAlias, score)
}

func (s *TrustGovSmartContract) GetParticipantDetails(ctx contractapi.TransactionContextInterface, identityOrAlias string) (*model.ParticipantInfo, error) {
	logger.Debugf("Chaincode Call: GetParticipantDetails for '%s'", identityOrAlias)
	im := NewIdentityManager(ctx)

	isCallerAdmin, err := im.IsCurrentUserAdmin()
	if err != nil {
		return nil, fmt.Errorf("GetParticipantDetails: failed to check admin status: %w", err)
	}
	if !isCallerAdmin {
		callerFullID, err := im.GetCurrentIdentityFullID()
		if err != nil {
			return nil, fmt.Errorf("GetParticipantDetails: failed to get caller's FullID: %w", err)
		}
		targetFullID, err := im.ResolveIdentity(identityOrAlias)
		if err != nil {
			return nil, fmt.Errorf("GetParticipantDetails: failed to resolve target identity '%s': %w", identityOrAlias, err)
		}
		if callerFullID != targetFullID {
			return nil, fmt.Errorf("%w: only admins or the participant itself can get these details", ErrUnauthorized)
		}
	}
	return im.GetParticipantInfo(identityOrAlias)
}

func (s *TrustGovSmartContract) GetAllParticipants(ctx contractapi.TransactionContextInterface) ([]model.ParticipantInfo, error) {
	logger.Debug("Chaincode Call: GetAllParticipants")
	return NewIdentityManager(ctx).GetAllRegisteredParticipants()
}

// --- Bootstrap ---

// BootstrapLedger initializes the ledger with a bootstrap admin identity if no
// admin exists. The caller becomes the first admin via direct state writes.
func (s *TrustGovSmartContract) BootstrapLedger(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to bootstrap ledger with initial admin...")
	im := NewIdentityManager(ctx)

	anyAdminAlreadyExists, err := im.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to check if any admin exists: %w", err)
	}
	if anyAdminAlreadyExists {
		return fmt.Errorf("%w: system already has admins, BootstrapLedger should not be re-run", ErrInvalidState)
	}

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to get caller identity for bootstrap: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to get timestamp: %w", err)
	}

	bootstrapAdmin := model.ParticipantInfo{
		ObjectType:      participantObjectType,
		FullID:          actor.fullID,
		ShortName:       actor.alias,
		EnrollmentID:    actor.alias,
		OrganizationMSP: actor.mspID,
		Status:          model.VerificationApproved,
		ProfileScore:    0,
		Roles:           []string{},
		IsAdmin:         true,
		RegisteredBy:    actor.fullID,
		RegisteredAt:    now,
		LastUpdatedAt:   now,
	}
	participantKey, keyErr := im.createParticipantCompositeKey(actor.fullID)
	if keyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create participant key for '%s': %w", actor.fullID, keyErr)
	}
	bootstrapAdminBytes, marshalErr := json.Marshal(bootstrapAdmin)
	if marshalErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to marshal bootstrap admin record: %w", marshalErr)
	}
	if err := ctx.GetStub().PutState(participantKey, bootstrapAdminBytes); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to save bootstrap admin record for '%s': %w", actor.fullID, err)
	}

	aliasKey, aliasKeyErr := im.createAliasCompositeKey(actor.alias)
	if aliasKeyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create alias key for '%s': %w", actor.alias, aliasKeyErr)
	}
	if err := ctx.GetStub().PutState(aliasKey, []byte(actor.fullID)); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to save alias mapping '%s' -> '%s': %w", actor.alias, actor.fullID, err)
	}

	adminFlagKey, flagKeyErr := im.createAdminFlagCompositeKey(actor.fullID)
	if flagKeyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create admin flag key for '%s': %w", actor.fullID, flagKeyErr)
	}
	if err := ctx.GetStub().PutState(adminFlagKey, []byte("true")); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to set admin flag for '%s': %w", actor.fullID, err)
	}

	logger.Infof("BootstrapLedger: Ledger bootstrapped. Identity '%s' (alias: '%s') is now an admin.", actor.fullID, actor.alias)
	return nil
}
