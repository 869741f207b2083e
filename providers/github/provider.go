package github

import (
	"net/url"
	"strings"
	"time"
)

const (
	ProviderID        = "github"
	DefaultAPIBaseURL = "https://api.github.com"

	// AcceptInstallationToken is the media type of the installation token
	// exchange endpoint.
	AcceptInstallationToken = "application/vnd.github.machine-man-preview+json"
	// AcceptREST is the media type sent with authenticated REST calls.
	AcceptREST  = "application/vnd.github.antiope-preview+json"
	ContentJSON = "application/json"

	defaultTimeout = 30 * time.Second
)

// InstallationTokenPath is the exchange endpoint for installationID.
func InstallationTokenPath(installationID string) string {
	return "app/installations/" + url.PathEscape(strings.TrimSpace(installationID)) + "/access_tokens"
}

func resolveBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return DefaultAPIBaseURL
	}
	return strings.TrimRight(base, "/")
}

func resolveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

func truncateBody(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if limit > 0 && len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
