package domain

// User identifies an account by its SID pair. The SID pair survives account
// renames; the names are carried for display and logging.
type User struct {
	AccountName string `json:"account_name" db:"account_name"`
	DomainName  string `json:"domain_name" db:"domain_name"`
	AccountSID  string `json:"account_sid" db:"account_sid"`
	DomainSID   string `json:"domain_sid" db:"domain_sid"`
}

// Key returns the stable identity of the user, independent of renames.
func (u User) Key() string {
	return u.DomainSID + "/" + u.AccountSID
}

// Equal reports whether two users denote the same account.
func (u User) Equal(other User) bool {
	return u.AccountSID == other.AccountSID && u.DomainSID == other.DomainSID
}

// IsZero reports whether the user is unset.
func (u User) IsZero() bool {
	return u.AccountSID == "" && u.DomainSID == ""
}
