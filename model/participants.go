package model

import "time"

// VerificationStatus defines the possible verification states of a participant.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "PENDING"   // Registered, awaiting approval
	VerificationApproved  VerificationStatus = "APPROVED"  // Verified participant
	VerificationSuspended VerificationStatus = "SUSPENDED" // Verification revoked
)

// ParticipantInfo stores information about registered participants in the system.
type ParticipantInfo struct {
	ObjectType      string             `json:"objectType"`      // Set to the composite key object type (ParticipantInfo)
	FullID          string             `json:"fullId"`          // Full X.509 identity string
	ShortName       string             `json:"shortName"`       // Alias/short name for this identity
	EnrollmentID    string             `json:"enrollmentId"`    // EnrollmentID from certificate or registration
	OrganizationMSP string             `json:"organizationMsp"` // MSP ID of the organization
	Status          VerificationStatus `json:"status"`          // Verification lifecycle state
	ProfileScore    uint64             `json:"profileScore"`    // Identity-verification score component
	Roles           []string           `json:"roles"`           // List of roles assigned to this participant
	IsAdmin         bool               `json:"isAdmin"`         // Whether this participant has admin privileges
	RegisteredBy    string             `json:"registeredBy"`    // Full ID of identity that registered this one
	RegisteredAt    time.Time          `json:"registeredAt"`    // Timestamp when participant was registered
	LastUpdatedAt   time.Time          `json:"lastUpdatedAt"`   // Timestamp of last update to this record
}

// IsVerified reports whether the participant passed identity verification.
func (p *ParticipantInfo) IsVerified() bool {
	return p != nil && p.Status == VerificationApproved
}
