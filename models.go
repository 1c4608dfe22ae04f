package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the credential record backing every auth flow. The password hash
// and outstanding token hashes are never serialized; API responses go
// through UserView.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName  string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email     string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone     string     `bun:"phone,notnull,unique" json:"phone,omitempty"`
	DOB       *time.Time `bun:"dob,nullzero" json:"dob,omitempty"`

	PasswordHash string `bun:"password_hash,notnull" json:"-"`

	IsEmailConfirmed       bool       `bun:"is_email_confirmed,notnull,default:false" json:"is_email_confirmed,omitempty"`
	ConfirmEmailTokenHash  *string    `bun:"confirm_email_token_hash,nullzero" json:"-"`
	ResetPasswordTokenHash *string    `bun:"reset_password_token_hash,nullzero" json:"-"`
	ResetPasswordExpiresAt *time.Time `bun:"reset_password_expires_at,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// GetID returns the user id in string form, satisfying Identity.
func (u *User) GetID() string {
	return u.ID.String()
}

// GetEmail returns the user email, satisfying Identity.
func (u *User) GetEmail() string {
	return u.Email
}

// SetConfirmEmailTokenHash stores the hash of the outstanding confirmation
// token, replacing any prior one.
func (u *User) SetConfirmEmailTokenHash(hash string) {
	u.ConfirmEmailTokenHash = &hash
}

// ClearConfirmEmailToken removes the outstanding confirmation token and
// marks the address as confirmed.
func (u *User) ClearConfirmEmailToken() {
	u.ConfirmEmailTokenHash = nil
	u.IsEmailConfirmed = true
}

// SetResetPasswordToken stores the reset token hash together with its
// expiry, replacing any prior token.
func (u *User) SetResetPasswordToken(hash string, expiresAt time.Time) {
	u.ResetPasswordTokenHash = &hash
	u.ResetPasswordExpiresAt = &expiresAt
}

// ClearResetPasswordToken removes the outstanding reset token fields.
func (u *User) ClearResetPasswordToken() {
	u.ResetPasswordTokenHash = nil
	u.ResetPasswordExpiresAt = nil
}

// UserView is the public shape of a user record, matching the client
// contract of the API.
type UserView struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	DOB       *time.Time `json:"dob,omitempty"`
}

// View maps the record to its API shape. The password hash and token
// fields have no representation here on purpose.
func (u *User) View() UserView {
	return UserView{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		DOB:       u.DOB,
	}
}
