package ws

import (
	"strings"
	"testing"
)

func TestIsValidChannelName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"room:AB12", true},
		{"room:ab12", true},
		{"", false},
		{"room AB12", false},
		{"room:<script>", false},
		{strings.Repeat("a", 129), false},
	}

	for _, tc := range tests {
		if got := IsValidChannelName(tc.name); got != tc.expected {
			t.Errorf("IsValidChannelName(%q) = %v, expected %v", tc.name, got, tc.expected)
		}
	}
}

func TestIsValidPresenceKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"", true},
		{"0190b5c8-6a1e-7c3e-9b1a-2f4d5e6f7a8b", true},
		{"with space", false},
		{"a:b", false},
	}

	for _, tc := range tests {
		if got := IsValidPresenceKey(tc.key); got != tc.expected {
			t.Errorf("IsValidPresenceKey(%q) = %v, expected %v", tc.key, got, tc.expected)
		}
	}
}
