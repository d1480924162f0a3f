package gitrepo

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IsSSHURL checks if a git URL uses the SSH protocol
func IsSSHURL(gitURL string) bool {
	return strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://")
}

// IsHTTPSURL checks if a git URL uses the HTTPS protocol
func IsHTTPSURL(gitURL string) bool {
	return strings.HasPrefix(gitURL, "https://") || strings.HasPrefix(gitURL, "http://")
}

// RepoNameFromURL extracts the repository name from a git URL. It is the
// default cache name when a repository is added without an explicit one.
func RepoNameFromURL(gitURL string) string {
	url := gitURL
	if IsSSHURL(url) {
		// SSH URLs look like git@github.com:org/survey-data.git
		parts := strings.Split(url, ":")
		if len(parts) > 1 {
			url = parts[1]
		}
	} else if IsHTTPSURL(url) {
		url = strings.TrimPrefix(url, "https://")
		url = strings.TrimPrefix(url, "http://")
		parts := strings.Split(url, "/")
		if len(parts) > 1 {
			url = strings.Join(parts[1:], "/")
		}
	}

	url = strings.TrimSuffix(url, ".git")

	parts := strings.Split(url, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}

	return "unknown"
}

// ValidateGitURL performs basic validation on a git URL
func ValidateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL cannot be empty")
	}

	if !IsSSHURL(gitURL) && !IsHTTPSURL(gitURL) {
		// Local paths are allowed for repositories on shared drives
		if !filepath.IsAbs(gitURL) {
			return fmt.Errorf("invalid git URL: must be SSH, HTTPS, or absolute local path")
		}
	}

	return nil
}

// NormalizeGitURL normalizes a git URL to a standard format
func NormalizeGitURL(gitURL string) string {
	url := strings.TrimSpace(gitURL)

	if (IsSSHURL(url) || IsHTTPSURL(url)) && !strings.HasSuffix(url, ".git") {
		url += ".git"
	}

	return url
}

// IsDataFile reports whether a path is a dataset or mapping file the
// pipeline can consume.
func IsDataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".yaml", ".yml":
		return true
	}
	return false
}

// FilterDataFiles filters a list of paths down to data and mapping files
func FilterDataFiles(files []string) []string {
	var dataFiles []string
	for _, file := range files {
		if IsDataFile(file) {
			dataFiles = append(dataFiles, file)
		}
	}
	return dataFiles
}
