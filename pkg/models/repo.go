package models

import "time"

// RepoCache represents a locally cached dataset repository
type RepoCache struct {
	RepoName    string    `json:"repo_name"`
	LocalPath   string    `json:"local_path"`
	LastFetched time.Time `json:"last_fetched"`
	Branch      string    `json:"branch"`
}

// DataFile is a data or mapping file discovered in a synced repository
type DataFile struct {
	Path    string `json:"path"`
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
}
