package domain

// Assignment maps a profile to the set of users it governs.
type Assignment struct {
	ProfileID string `json:"profile_id"`
	Users     []User `json:"users"`
}

// PolicySnapshot is an internally consistent view of one user's effective
// policy, taken atomically by the repository: the active profile and its
// rules resolved in precedence order.
type PolicySnapshot struct {
	Profile Profile
	Rules   []Rule
}
