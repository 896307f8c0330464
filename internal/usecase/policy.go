package usecase

import "strings"

// PolicyConfig holds the sender-domain rules for approval gating.
type PolicyConfig struct {
	RequireForExternal bool
	AllowedDomains     []string
	BlockedDomains     []string
}

// RequiresApproval reports whether a drafted reply for the given sender must
// be confirmed by a human before sending. Pure function, no side effects.
// A malformed sender address (no usable domain part) fails closed.
func RequiresApproval(sender string, policy PolicyConfig) bool {
	domain, ok := senderDomain(sender)
	if !ok {
		return true
	}

	for _, blocked := range policy.BlockedDomains {
		if strings.EqualFold(blocked, domain) {
			return true
		}
	}

	if policy.RequireForExternal && !containsFold(policy.AllowedDomains, domain) {
		return true
	}

	return false
}

func senderDomain(sender string) (string, bool) {
	at := strings.LastIndex(sender, "@")
	if at <= 0 || at == len(sender)-1 {
		return "", false
	}
	return strings.ToLower(sender[at+1:]), true
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
