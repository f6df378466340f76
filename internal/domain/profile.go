package domain

// ProfileUpdate is the persistence intent built from a validated profile form.
// Optional members are applied only when set.
type ProfileUpdate struct {
	UserID       int64
	Name         string
	Username     string
	Contact      ContactInfo
	PasswordHash *string
	HostBio      *string
	RenterBio    *string
}
