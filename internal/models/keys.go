package models

import "fmt"

// BusinessKey is the uniqueness key for the single conversation allowed
// per (user, business) pair.
func BusinessKey(businessID, userID string) string {
	return fmt.Sprintf("biz:%s:%s", businessID, userID)
}

// DirectKey is the uniqueness key for the single conversation allowed per
// unordered pair of direct users.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%s:%s", a, b)
}
