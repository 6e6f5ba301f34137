package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrVersionCheckFailed = errors.New("version check failed")

const (
	githubAPIURL        = "https://api.github.com/repos/tidewell/tablediff/releases/latest"
	versionCheckTimeout = 5 * time.Second
	cacheExpiry         = 24 * time.Hour
)

// GitHubRelease holds the fields of GitHub's latest-release response we use.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// VersionCheckResult reports whether a newer release exists. Error is
// informational only; a failed check never blocks a run.
type VersionCheckResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	Error           error
}

// checkForUpdates compares the running version against the newest GitHub
// release. Results are cached for a day so repeated invocations don't hit
// the API. Development builds ("dev" or empty) skip the check entirely.
func checkForUpdates(ctx context.Context, currentVersion string) VersionCheckResult {
	result := VersionCheckResult{CurrentVersion: currentVersion}

	if currentVersion == "dev" || currentVersion == "" {
		return result
	}

	if cached := getVersionCheckCache(); cached != nil && time.Since(cached.Timestamp) < cacheExpiry {
		result.UpdateAvailable = cached.UpdateAvailable
		result.LatestVersion = cached.LatestVersion
		result.ReleaseURL = cached.ReleaseURL
		return result
	}

	release, err := fetchLatestRelease(ctx, currentVersion)
	if err != nil {
		result.Error = err
		return result
	}

	result.LatestVersion = strings.TrimPrefix(release.TagName, "v")
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = compareVersions(result.LatestVersion, strings.TrimPrefix(currentVersion, "v")) > 0

	saveVersionCheckCache(VersionCheckCache{
		UpdateAvailable: result.UpdateAvailable,
		LatestVersion:   result.LatestVersion,
		ReleaseURL:      result.ReleaseURL,
		Timestamp:       time.Now(),
	})

	return result
}

func fetchLatestRelease(ctx context.Context, currentVersion string) (GitHubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to create request: %w", err)
	}
	// GitHub rejects requests without a User-Agent.
	req.Header.Set("User-Agent", fmt.Sprintf("tablediff/%s", currentVersion))

	client := &http.Client{Timeout: versionCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GitHubRelease{}, fmt.Errorf("%w: status %d", ErrVersionCheckFailed, resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return release, nil
}

// compareVersions orders two dotted version strings.
// Returns 1 if v1 is newer, -1 if older, 0 if equal.
func compareVersions(v1, v2 string) int {
	a, b := parseVersion(v1), parseVersion(v2)
	for i := range a {
		switch {
		case a[i] > b[i]:
			return 1
		case a[i] < b[i]:
			return -1
		}
	}
	return 0
}

// parseVersion splits a version string into [major, minor, patch].
// Missing or malformed components read as zero.
func parseVersion(version string) [3]int {
	var parts [3]int
	for i, component := range strings.Split(version, ".") {
		if i == len(parts) {
			break
		}
		if n, err := strconv.Atoi(component); err == nil {
			parts[i] = n
		}
	}
	return parts
}

// VersionCheckCache is the on-disk record of the last completed check.
type VersionCheckCache struct {
	UpdateAvailable bool      `json:"update_available"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseURL      string    `json:"release_url"`
	Timestamp       time.Time `json:"timestamp"`
}

func getVersionCheckCachePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".tablediff", "version_check.json")
}

// getVersionCheckCache loads the cached check, or nil if absent or unreadable.
func getVersionCheckCache() *VersionCheckCache {
	data, err := os.ReadFile(getVersionCheckCachePath())
	if err != nil {
		return nil
	}
	var cache VersionCheckCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// saveVersionCheckCache persists the check result. Failures are ignored;
// the cache is an optimization, not a requirement.
func saveVersionCheckCache(cache VersionCheckCache) {
	path := getVersionCheckCachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

// formatUpdateMessage renders the one-line notice shown when a newer
// release exists.
func formatUpdateMessage(result VersionCheckResult) string {
	return fmt.Sprintf("Update available: v%s → v%s (visit %s)",
		result.CurrentVersion,
		result.LatestVersion,
		result.ReleaseURL,
	)
}
