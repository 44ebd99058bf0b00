package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// User is a marketplace participant. Vendors additionally carry their
// encrypted gateway credential pair; the ciphertext never leaves the row
// except through the credential vault, and never serializes to JSON.
type User struct {
	ID    uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email string          `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Name  string          `gorm:"column:name;not null" json:"name"`
	Role  enums.ActorRole `gorm:"column:role;type:text;not null;default:'buyer'" json:"role"`

	GatewayKeyIDCiphertext     *string `gorm:"column:gateway_key_id_ciphertext" json:"-"`
	GatewayKeySecretCiphertext *string `gorm:"column:gateway_key_secret_ciphertext" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// HasGatewayCredentials reports whether both ciphertext fields are present.
func (u *User) HasGatewayCredentials() bool {
	return u != nil &&
		u.GatewayKeyIDCiphertext != nil && *u.GatewayKeyIDCiphertext != "" &&
		u.GatewayKeySecretCiphertext != nil && *u.GatewayKeySecretCiphertext != ""
}
