package entities

import (
	"regexp"
	"strings"
	"time"
)

// IdentityScheme selects the identifier format a deployment accepts.
type IdentityScheme string

const (
	SchemeEmail IdentityScheme = "email"
	SchemePhone IdentityScheme = "phone"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// NormalizeIdentity is the single place identifier normalization happens.
// Every store key and every comparison uses the normalized form.
func NormalizeIdentity(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// ValidFormat is a pure syntactic check against the scheme's pattern.
// Email deployments additionally require an institutional domain.
func ValidFormat(scheme IdentityScheme, identifier string) bool {
	identifier = NormalizeIdentity(identifier)
	switch scheme {
	case SchemeEmail:
		if !emailPattern.MatchString(identifier) {
			return false
		}
		return strings.HasSuffix(identifier, ".edu") || strings.Contains(identifier, "college.edu")
	case SchemePhone:
		return phonePattern.MatchString(identifier)
	default:
		return false
	}
}

// Challenge is a pending one-time-code proof bound to an identifier.
// Single use: verification deletes it.
type Challenge struct {
	ChallengeID string
	Identity    string
	Code        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AuthToken proves a completed challenge. Expiry is enforced on every check;
// tokens are not consumed because they authenticate calls, not votes.
type AuthToken struct {
	Token     string
	Identity  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t AuthToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
