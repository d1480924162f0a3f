package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/observability"
	"surveyforge/pkg/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		cacheDir: t.TempDir(),
		logger:   observability.GetDefaultLogger(),
	}
}

// commitFile writes a file into the worktree and commits it.
func commitFile(t *testing.T, repoPath string, worktree *git.Worktree, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(repoPath, name), []byte(content), 0644)
	require.NoError(t, err)
	_, err = worktree.Add(name)
	require.NoError(t, err)
	_, err = worktree.Commit("Add "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
}

func TestNewService(t *testing.T) {
	service := NewService()
	assert.NotNil(t, service)
	assert.NotEmpty(t, service.cacheDir)
}

func TestSyncRepository(t *testing.T) {
	tempDir := t.TempDir()

	// Build a source repository for the sync to clone from
	sourceDir := filepath.Join(tempDir, "source")
	sourceRepo, err := git.PlainInit(sourceDir, false)
	require.NoError(t, err)

	worktree, err := sourceRepo.Worktree()
	require.NoError(t, err)
	commitFile(t, sourceDir, worktree, "survey_2024.csv", "ResponseId,Country\n1,Germany\n")

	service := &Service{
		cacheDir: filepath.Join(tempDir, "cache"),
		logger:   observability.GetDefaultLogger(),
	}

	repo := models.Repository{
		Name:   "survey-data",
		GitURL: sourceDir,
	}

	err = service.SyncRepository(repo)
	assert.NoError(t, err)

	_, err = os.Stat(service.LocalPath(repo.Name))
	assert.NoError(t, err)
}

func TestDataFiles(t *testing.T) {
	service := newTestService(t)

	repoName := "survey-data"
	localPath := service.LocalPath(repoName)
	_, err := git.PlainInit(localPath, false)
	require.NoError(t, err)

	rawDir := filepath.Join(localPath, "data", "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0755))

	files := map[string]string{
		"data/raw/survey_2023.csv": "ResponseId\n1\n",
		"data/raw/survey_2024.csv": "ResponseId\n1\n",
		"mappings.yaml":            "fields: []\n",
		"readme.md":                "ignored\n",
	}
	for name, content := range files {
		path := filepath.Join(localPath, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	// Files under .git must never be picked up
	require.NoError(t, os.WriteFile(filepath.Join(localPath, ".git", "sneaky.csv"), []byte("x"), 0644))

	t.Run("whole repository", func(t *testing.T) {
		found, err := service.DataFiles(models.Repository{Name: repoName})
		require.NoError(t, err)

		var rels []string
		for _, f := range found {
			rels = append(rels, filepath.ToSlash(f.RelPath))
			assert.Greater(t, f.Size, int64(0))
		}
		assert.Equal(t, []string{
			"data/raw/survey_2023.csv",
			"data/raw/survey_2024.csv",
			"mappings.yaml",
		}, rels)
	})

	t.Run("subdirectory only", func(t *testing.T) {
		found, err := service.DataFiles(models.Repository{Name: repoName, Path: "data/raw"})
		require.NoError(t, err)

		var rels []string
		for _, f := range found {
			rels = append(rels, filepath.ToSlash(f.RelPath))
		}
		assert.Equal(t, []string{
			"data/raw/survey_2023.csv",
			"data/raw/survey_2024.csv",
		}, rels)
	})

	t.Run("unsynced repository", func(t *testing.T) {
		_, err := service.DataFiles(models.Repository{Name: "never-synced"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not in the cache")
	})
}

func TestCachedRepositories(t *testing.T) {
	service := newTestService(t)

	repoNames := []string{"survey-data", "mapping-configs", "archive"}
	for _, name := range repoNames {
		_, err := git.PlainInit(filepath.Join(service.cacheDir, name), false)
		require.NoError(t, err)
	}

	// Non-git directories are not repositories
	require.NoError(t, os.MkdirAll(filepath.Join(service.cacheDir, "not-a-repo"), 0755))

	repos, err := service.CachedRepositories()
	assert.NoError(t, err)
	assert.Len(t, repos, 3)

	found := make(map[string]bool)
	for _, repo := range repos {
		found[repo.RepoName] = true
		assert.NotEmpty(t, repo.LocalPath)
		assert.Contains(t, repo.LocalPath, repo.RepoName)
	}
	for _, name := range repoNames {
		assert.True(t, found[name], "repository %s not found", name)
	}
}

func TestCleanCache(t *testing.T) {
	service := newTestService(t)

	oldRepo := filepath.Join(service.cacheDir, "old-repo")
	newRepo := filepath.Join(service.cacheDir, "new-repo")

	_, err := git.PlainInit(oldRepo, false)
	require.NoError(t, err)
	_, err = git.PlainInit(newRepo, false)
	require.NoError(t, err)

	oldTime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldRepo, oldTime, oldTime))

	err = service.CleanCache(24 * time.Hour)
	assert.NoError(t, err)

	_, err = os.Stat(oldRepo)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(newRepo)
	assert.NoError(t, err)
}

func TestLocalPath(t *testing.T) {
	service := NewService()

	tests := []struct {
		repoName string
		expected string
	}{
		{"survey-data", "survey-data"},
		{"org/survey-data", "org_survey-data"},
		{"path\\with\\backslash", "path_with_backslash"},
	}

	for _, tt := range tests {
		t.Run(tt.repoName, func(t *testing.T) {
			path := service.LocalPath(tt.repoName)
			assert.Contains(t, path, tt.expected)
			assert.Contains(t, path, service.cacheDir)
		})
	}
}
