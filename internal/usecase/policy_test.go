package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresApproval(t *testing.T) {
	policy := PolicyConfig{
		RequireForExternal: true,
		AllowedDomains:     []string{"corp.example"},
		BlockedDomains:     []string{"spam.example"},
	}

	tests := []struct {
		name   string
		sender string
		policy PolicyConfig
		want   bool
	}{
		{"allowed domain", "alice@corp.example", policy, false},
		{"allowed domain case-insensitive", "alice@CORP.Example", policy, false},
		{"external domain", "bob@other.example", policy, true},
		{"blocked domain", "mallory@spam.example", policy, true},
		{"blocked wins even without external gating", "mallory@spam.example", PolicyConfig{BlockedDomains: []string{"spam.example"}}, true},
		{"no gating at all", "anyone@anywhere.example", PolicyConfig{}, false},
		{"missing at sign fails closed", "not-an-address", PolicyConfig{}, true},
		{"empty domain fails closed", "broken@", PolicyConfig{}, true},
		{"empty local part fails closed", "@example.com", PolicyConfig{}, true},
		{"last at sign decides the domain", `"weird@local"@corp.example`, policy, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RequiresApproval(tc.sender, tc.policy))
		})
	}
}
