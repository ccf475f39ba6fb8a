package notify

import "testing"

// TestNormalizePhone covers the normalization contract: international
// numbers pass through, bare national numbers get the +1 prefix, and
// formatting characters are stripped.
func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"555.123.4567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"+15551234567", "+15551234567"},
		{"+442071838750", "+442071838750"},
		{"  +442071838750  ", "+442071838750"},
		{"442071838750", "+442071838750"},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
