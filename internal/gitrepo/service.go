package gitrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"surveyforge/internal/common"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// Service keeps dataset repositories synced into the local cache so the
// pipeline can read raw CSVs and mapping files from a known location.
type Service struct {
	cacheDir string
	logger   *observability.Logger
}

// NewService creates a git service backed by the default cache directory.
func NewService() *Service {
	return &Service{
		cacheDir: CacheDirectory(),
		logger:   observability.GetDefaultLogger(),
	}
}

// SyncRepository clones or updates a dataset repository, retrying
// transient network failures.
func (s *Service) SyncRepository(repo models.Repository) error {
	localPath := s.LocalPath(repo.Name)

	ctx := context.Background()
	err := errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if err := CloneOrFetch(repo.GitURL, localPath); err != nil {
			if strings.Contains(err.Error(), "connection") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "unreachable") {
				return errors.New(errors.ErrCodeNetworkUnavailable,
					"Network error while syncing dataset repository").
					WithContext("repository", repo.Name).
					WithContext("url", repo.GitURL).
					AsRecoverable()
			}

			if strings.Contains(err.Error(), "authentication") ||
				strings.Contains(err.Error(), "unauthorized") {
				return errors.New(errors.ErrCodeRepoAuthFailed,
					"Authentication failed for dataset repository").
					WithContext("repository", repo.Name).
					WithSuggestions(
						"Check your Git credentials",
						"Ensure you have access to the repository",
						"Try cloning the repository manually to verify access",
					)
			}

			return errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
				fmt.Sprintf("Failed to sync repository %s", repo.Name))
		}

		return nil
	})

	if err != nil {
		return err
	}

	if repo.Branch != "" && repo.Branch != "main" && repo.Branch != "master" {
		if err := CheckoutBranch(localPath, repo.Branch); err != nil {
			return errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
				fmt.Sprintf("Failed to checkout branch %s", repo.Branch)).
				WithContext("branch", repo.Branch).
				WithSuggestions(
					fmt.Sprintf("Verify branch '%s' exists", repo.Branch),
					"Check for typos in branch name",
				)
		}
	}

	s.logger.InfoWithFields("Dataset repository synced", map[string]interface{}{
		"repository": repo.Name,
		"path":       localPath,
	})

	return nil
}

// DataFiles lists the data and mapping files in a synced repository,
// restricted to the configured subdirectory when one is set.
func (s *Service) DataFiles(repo models.Repository) ([]models.DataFile, error) {
	root := s.LocalPath(repo.Name)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeRepoNotFound,
			fmt.Sprintf("Repository %s is not in the cache", repo.Name)).
			WithSuggestions("Run 'surveyforge repo sync' first")
	}

	scanRoot := root
	if repo.Path != "" {
		scanRoot = filepath.Join(root, filepath.Clean(repo.Path))
	}

	var files []models.DataFile
	err := filepath.WalkDir(scanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// The .git directory holds no data files
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsDataFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, models.DataFile{
			Path:    path,
			RelPath: rel,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// CachedRepositories returns information about all repositories in the
// local cache.
func (s *Service) CachedRepositories() ([]models.RepoCache, error) {
	if err := os.MkdirAll(s.cacheDir, common.DirPermissionNormal); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var repos []models.RepoCache
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		repoPath := filepath.Join(s.cacheDir, entry.Name())
		if _, err := os.Stat(filepath.Join(repoPath, ".git")); os.IsNotExist(err) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		repos = append(repos, models.RepoCache{
			RepoName:    entry.Name(),
			LocalPath:   repoPath,
			LastFetched: info.ModTime(),
			Branch:      s.currentBranch(repoPath),
		})
	}

	return repos, nil
}

// CleanCache removes cached repositories that have not been fetched
// within maxAge.
func (s *Service) CleanCache(maxAge time.Duration) error {
	repos, err := s.CachedRepositories()
	if err != nil {
		return err
	}

	now := time.Now()
	for _, repo := range repos {
		if now.Sub(repo.LastFetched) > maxAge {
			if err := os.RemoveAll(repo.LocalPath); err != nil {
				return fmt.Errorf("failed to remove old repository %s: %w", repo.RepoName, err)
			}
			s.logger.InfoWithFields("Removed stale repository from cache", map[string]interface{}{
				"repository": repo.RepoName,
			})
		}
	}

	return nil
}

// LocalPath returns the cache path for a repository name.
func (s *Service) LocalPath(repoName string) string {
	safeName := strings.ReplaceAll(repoName, "/", "_")
	safeName = strings.ReplaceAll(safeName, "\\", "_")
	return filepath.Join(s.cacheDir, safeName)
}

func (s *Service) currentBranch(repoPath string) string {
	branch, err := CurrentBranch(repoPath)
	if err != nil {
		return "main"
	}
	return branch
}
