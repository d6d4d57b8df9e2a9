// Package auth resolves API bearer tokens to user IDs.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"forexBot/internal/ports"
)

type binding struct {
	token  string
	userID string
}

// StaticTokens verifies tokens against a fixed table loaded from configuration.
type StaticTokens struct {
	bindings []binding
}

var _ ports.TokenVerifier = (*StaticTokens)(nil)

// ParseTokens parses "token:userID,token:userID" into a StaticTokens table.
func ParseTokens(list string) (*StaticTokens, error) {
	st := &StaticTokens{}
	seen := make(map[string]bool)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, userID, ok := strings.Cut(entry, ":")
		token, userID = strings.TrimSpace(token), strings.TrimSpace(userID)
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("%w: malformed token entry %q, want token:userID", ports.ErrConfigurationError, entry)
		}
		if seen[token] {
			return nil, fmt.Errorf("%w: duplicate token for user %s", ports.ErrConfigurationError, userID)
		}
		seen[token] = true
		st.bindings = append(st.bindings, binding{token: token, userID: userID})
	}
	return st, nil
}

// Len returns the number of configured tokens.
func (s *StaticTokens) Len() int {
	return len(s.bindings)
}

// Verify returns the user bound to token.
func (s *StaticTokens) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing token: %w", ports.ErrUnauthorized)
	}
	userID := ""
	for _, b := range s.bindings {
		// Compare against every entry so timing does not reveal the position of a match.
		if subtle.ConstantTimeCompare([]byte(token), []byte(b.token)) == 1 {
			userID = b.userID
		}
	}
	if userID == "" {
		return "", fmt.Errorf("unknown token: %w", ports.ErrUnauthorized)
	}
	return userID, nil
}
