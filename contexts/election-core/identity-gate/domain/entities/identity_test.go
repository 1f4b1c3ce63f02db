package entities

import (
	"testing"
	"time"
)

func TestValidFormatEmailScheme(t *testing.T) {
	valid := []string{
		"student@college.edu",
		"jane.doe@state.edu",
		"  MIXED@College.EDU  ",
	}
	for _, identifier := range valid {
		if !ValidFormat(SchemeEmail, identifier) {
			t.Fatalf("expected %q to be valid", identifier)
		}
	}

	invalid := []string{
		"",
		"student@gmail.com",
		"no-at-sign.edu",
		"two@@college.edu",
		"spaces in@college.edu",
	}
	for _, identifier := range invalid {
		if ValidFormat(SchemeEmail, identifier) {
			t.Fatalf("expected %q to be invalid", identifier)
		}
	}
}

func TestValidFormatPhoneScheme(t *testing.T) {
	if !ValidFormat(SchemePhone, "5551234567") {
		t.Fatal("expected ten digit phone to be valid")
	}
	if ValidFormat(SchemePhone, "555-123-4567") {
		t.Fatal("expected dashed phone to be invalid")
	}
	if ValidFormat(SchemePhone, "123") {
		t.Fatal("expected short phone to be invalid")
	}
}

func TestNormalizeIdentity(t *testing.T) {
	if got := NormalizeIdentity("  Student@College.EDU "); got != "student@college.edu" {
		t.Fatalf("unexpected normalized identity %q", got)
	}
}

func TestChallengeExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	challenge := Challenge{ExpiresAt: now.Add(5 * time.Minute)}
	if challenge.Expired(now) {
		t.Fatal("challenge should not be expired yet")
	}
	if !challenge.Expired(now.Add(6 * time.Minute)) {
		t.Fatal("challenge should be expired")
	}
}
