// Package search narrows the visible user list down to the users matching a
// typed query.
package search

import (
	"strings"

	"looped/internal/profile"
)

// Filter keeps the users whose username or display name starts with query,
// ignoring case. Input order is preserved and an empty query returns users
// unchanged.
func Filter(users []*profile.User, query string) []*profile.User {
	q := strings.ToLower(query)
	if q == "" {
		return users
	}
	out := make([]*profile.User, 0, len(users))
	for _, u := range users {
		if matches(u, q) {
			out = append(out, u)
		}
	}
	return out
}

// FilterExcluding is Filter for a list that must never show the current
// user, including when the query is empty.
func FilterExcluding(users []*profile.User, query, currentUserID string) []*profile.User {
	q := strings.ToLower(query)
	out := make([]*profile.User, 0, len(users))
	for _, u := range users {
		if u.ID == currentUserID {
			continue
		}
		if q == "" || matches(u, q) {
			out = append(out, u)
		}
	}
	return out
}

func matches(u *profile.User, lowerQuery string) bool {
	return strings.HasPrefix(strings.ToLower(u.Username), lowerQuery) ||
		strings.HasPrefix(strings.ToLower(u.DisplayName), lowerQuery)
}
