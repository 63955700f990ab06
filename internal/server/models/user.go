package models

import "time"

// Stock assets assigned to every new account until the user uploads their own.
const (
	DefaultProfileImage = "/user_images/profilePicture.png"
	DefaultBannerImage  = "/Profilebg.png"
)

// User is a Hipnode account. Address is the external identity key (a wallet
// account identifier) and is immutable after creation; both Address and
// Username carry unique indexes at the storage layer.
type User struct {
	ID           string
	Address      string
	Username     string
	ProfileImage string
	BannerImage  string
	Bio          string
	Website      string
	Twitter      string
	Facebook     string
	Instagram    string
	Points       int64
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser returns a User with the stock defaults for a first-time login.
func NewUser(address, username string) *User {
	return &User{
		Address:      address,
		Username:     username,
		ProfileImage: DefaultProfileImage,
		BannerImage:  DefaultBannerImage,
	}
}
