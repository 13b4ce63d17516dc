package users

import (
	"time"

	"github.com/yeti47/cryochat/core/encryption"
)

type User struct {
	ID          string // Stable id asserted by the identity provider
	Username    string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	LastSeen    time.Time

	// Key material, all base64. Empty until the user stored keys.
	PublicKey           string
	EncryptedPrivateKey string
	KeySalt             string
	KeyIV               string
}

// KeyRecord returns the user's encrypted key record, or nil if none is stored
func (u *User) KeyRecord() *encryption.EncryptedKeyRecord {
	record := &encryption.EncryptedKeyRecord{
		PublicKey:           u.PublicKey,
		EncryptedPrivateKey: u.EncryptedPrivateKey,
		Salt:                u.KeySalt,
		IV:                  u.KeyIV,
	}
	if *record == (encryption.EncryptedKeyRecord{}) {
		return nil
	}
	return record
}

// Profile is the public view of a user
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	PublicKey   string    `json:"public_key,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PublicKey:   u.PublicKey,
		LastSeen:    u.LastSeen,
	}
}
