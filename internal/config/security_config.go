package config

import (
	"net/netip"
	"strings"
)

type SecurityConfig interface {
	GetMaxLoginAttempts() int
	GetLoginRatePerMinute() int
	GetTrustedProxies() []netip.Prefix
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetMaxLoginAttempts is the number of consecutive failed logins before a principal is locked.
func (Security) GetMaxLoginAttempts() int {
	return GetEnvInt("MAX_LOGIN_ATTEMPTS", 5)
}

func (Security) GetLoginRatePerMinute() int {
	return GetEnvInt("LOGIN_RATE_PER_MINUTE", 20)
}

// GetTrustedProxies reads a comma separated TRUSTED_PROXIES list of addresses or CIDR ranges.
// X-Forwarded-For is only honoured on connections from these. Unparseable entries are ignored.
func (Security) GetTrustedProxies() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(GetEnv("TRUSTED_PROXIES", ""), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}
