package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
)

// ProviderSettings holds the configuration shared by every domain of one provider type.
type ProviderSettings struct {
	// Type is the lowercase provider type (e.g., "hetzner", "rfc2136").
	Type string

	// HTTP transport settings, consumed by HTTP-based providers.
	Timeout       time.Duration
	TLSSkipVerify bool
	UserAgent     string

	// Settings holds the remaining provider-specific keys, lowercased
	// (e.g., "endpoint", "server", "tsig_key_name").
	Settings map[string]string
}

// convertProviderSettings splits each provider section into HTTP settings
// and provider-specific settings. Non-string values are formatted as strings.
func convertProviderSettings(sections map[string]map[string]any) (map[string]*ProviderSettings, []string) {
	var errs []string
	out := make(map[string]*ProviderSettings, len(sections))

	for rawType, section := range sections {
		typeName := normalizeProviderType(rawType)
		ps := &ProviderSettings{
			Type:     typeName,
			Settings: make(map[string]string),
		}

		for key, value := range section {
			k := strings.ToLower(strings.TrimSpace(key))
			v := strings.TrimSpace(fmt.Sprint(value))

			switch k {
			case "timeout":
				d, err := parseTimeout(v)
				if err != nil {
					errs = append(errs, fmt.Sprintf("providers.%s.timeout: invalid value %q", typeName, v))
					continue
				}
				ps.Timeout = d
				// Non-HTTP providers read their own timeout.
				ps.Settings[k] = v
			case "tls_skip_verify":
				ps.TLSSkipVerify = parseBool(v, false)
			case "user_agent":
				ps.UserAgent = v
			default:
				ps.Settings[k] = v
			}
		}

		out[typeName] = ps
	}

	return out, errs
}

// parseTimeout accepts a Go duration ("30s") or a whole number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}

// convertUsers resolves token files and normalizes provider types and hosts.
func convertUsers(fileUsers []FileUserConfig) ([]UserConfig, []string) {
	var errs []string
	users := make([]UserConfig, 0, len(fileUsers))

	for i, fu := range fileUsers {
		u := UserConfig{
			Name:     strings.TrimSpace(fu.Name),
			Password: fu.Password,
			Domains:  make([]provider.DomainConfig, 0, len(fu.Domains)),
		}

		for j, fd := range fu.Domains {
			token := fd.APIToken
			if fd.APITokenFile != "" {
				t, err := readSecretFile(fd.APITokenFile)
				if err != nil {
					errs = append(errs, fmt.Sprintf("users[%d].domains[%d].api_token_file: %v", i, j, err))
				} else {
					token = t
				}
			}

			u.Domains = append(u.Domains, provider.DomainConfig{
				Provider: normalizeProviderType(fd.Provider),
				APIToken: token,
				Host:     normalizeHost(fd.Host),
				Zone: provider.Zone{
					ID:   strings.TrimSpace(fd.Zone.ID),
					Name: normalizeHost(fd.Zone.Name),
				},
			})
		}

		users = append(users, u)
	}

	return users, errs
}

func normalizeHost(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}
