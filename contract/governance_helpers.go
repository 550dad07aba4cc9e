package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *TrustGovSmartContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// getCurrentActorInfo resolves the invoker's full ID, alias and MSP.
func (s *TrustGovSmartContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	im := NewIdentityManager(ctx)
	fullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}

	var alias string
	pInfo, errGetInfo := im.GetParticipantInfo(fullID)
	if errGetInfo == nil && pInfo != nil {
		alias = pInfo.ShortName
	} else {
		logger.Debugf("Could not retrieve ParticipantInfo (or alias) for actor %s: %v. Attempting fallback.", fullID, errGetInfo)
		// Fall back to the X.509 CN when the actor is not registered yet.
		if strings.Contains(fullID, "::CN=") {
			parts := strings.Split(fullID, "::CN=")
			if len(parts) > 1 {
				cnPart := parts[1]
				if idx := strings.Index(cnPart, "::"); idx != -1 {
					cnPart = cnPart[:idx]
				}
				alias = cnPart
			}
		}
		if alias == "" {
			maxAliasLen := 16
			if len(fullID) > maxAliasLen {
				alias = "unknown_" + fullID[:maxAliasLen]
			} else {
				alias = "unknown_" + fullID
			}
		}
	}

	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{fullID: fullID, alias: alias, mspID: mspID}, nil
}

// createProposalCompositeKey creates a composite key for a proposal. The ID is
// zero-padded so partial-composite-key scans iterate proposals in creation order.
func (s *TrustGovSmartContract) createProposalCompositeKey(ctx contractapi.TransactionContextInterface, proposalID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(proposalObjectType, []string{fmt.Sprintf("%012d", proposalID)})
}

// createParticipantScopedKey creates a composite key of the form <objectType>~<fullID>.
func (s *TrustGovSmartContract) createParticipantScopedKey(ctx contractapi.TransactionContextInterface, objectType, fullID string) (string, error) {
	fullID = strings.TrimSpace(fullID)
	if fullID == "" {
		return "", fmt.Errorf("%w: participant ID cannot be empty", ErrInvalidInput)
	}
	return ctx.GetStub().CreateCompositeKey(objectType, []string{fullID})
}

// --- Validation Helper Functions ---

func (s *TrustGovSmartContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

func (s *TrustGovSmartContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

// --- Event Emission ---

// emitGovernanceEvent sends a chaincode event with a JSON payload.
func (s *TrustGovSmartContract) emitGovernanceEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	for k, v := range payload {
		if t, ok := v.(time.Time); ok {
			payload[k] = t.Format(time.RFC3339)
		}
	}
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitGovernanceEvent: Failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitGovernanceEvent: Failed to set event '%s': %v", eventName, errSet)
	}
}

// requireAdmin is a helper to check if the current caller is an admin.
func (s *TrustGovSmartContract) requireAdmin(ctx contractapi.TransactionContextInterface, im *IdentityManager) error {
	isCallerAdmin, err := im.IsCurrentUserAdmin()
	if err != nil {
		return fmt.Errorf("failed to check admin status: %w", err)
	}
	if !isCallerAdmin {
		callerID, _ := im.GetCurrentIdentityFullID()
		return fmt.Errorf("%w: caller '%s' is not an admin", ErrUnauthorized, callerID)
	}
	return nil
}
