package domain

import "time"

// User represents a member of the marketplace. Host and Renter are optional
// capabilities attached to the account.
type User struct {
	ID           int64
	Username     string
	Name         string
	Email        string
	ImageKey     string
	PasswordHash string
	Contact      *ContactInfo
	Host         *Host
	Renter       *Renter
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the user has a stored credential.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// ContactInfo is persisted as a unit and created lazily on the first update
// that carries contact data.
type ContactInfo struct {
	Phone   string
	Address string
	City    string
	State   string
	Zip     string
	Country string
}

// IsEmpty reports whether every contact field is blank.
func (c ContactInfo) IsEmpty() bool {
	return c.Phone == "" && c.Address == "" && c.City == "" &&
		c.State == "" && c.Zip == "" && c.Country == ""
}

type Host struct {
	UserID    int64
	Bio       string
	CreatedAt time.Time
}

type Renter struct {
	UserID    int64
	Bio       string
	CreatedAt time.Time
}
