package repository

import (
	"testing"
	"time"

	"github.com/averlane/client-portal/internal/model"
)

// TestCheckState pins the precedence and boundary rules shared by Validate
// and Consume: used wins over expired, and an invitation is consumable
// strictly before its expiry instant.
func TestCheckState(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	expires := issued.Add(InviteTTL)
	used := issued.Add(time.Hour)

	cases := []struct {
		name   string
		usedAt *time.Time
		now    time.Time
		want   error
	}{
		{"fresh", nil, issued, nil},
		{"last valid instant", nil, expires.Add(-time.Second), nil},
		{"at expiry", nil, expires, ErrInvitationExpired},
		{"past expiry", nil, expires.Add(time.Hour), ErrInvitationExpired},
		{"used", &used, issued.Add(2 * time.Hour), ErrInvitationUsed},
		{"used and expired reports used", &used, expires.Add(time.Hour), ErrInvitationUsed},
	}
	for _, tc := range cases {
		inv := model.Invitation{ExpiresAt: expires, UsedAt: tc.usedAt}
		if got := checkState(inv, tc.now); got != tc.want {
			t.Errorf("%s: checkState = %v, want %v", tc.name, got, tc.want)
		}
	}
}
