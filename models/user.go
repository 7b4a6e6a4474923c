package models

import "time"

type Role string

const (
	RoleGuest   Role = "GUEST"
	RoleMember  Role = "MEMBER"
	RoleSeller  Role = "SELLER"
	RoleSteward Role = "STEWARD"
	RoleAdmin   Role = "ADMIN"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	AuthSubject string    `json:"auth_subject"`
	Role        Role      `json:"role"`
	MemberID    *string   `json:"member_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Member struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	Email              string             `json:"email"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	Subject string
	Email   string
}
