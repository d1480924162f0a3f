package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"surveyforge/internal/common"
)

// CloneOrFetch clones a dataset repository or fetches updates if it is
// already cached.
func CloneOrFetch(gitURL, localPath string) error {
	cacheDir := filepath.Dir(localPath)
	if err := os.MkdirAll(cacheDir, common.DirPermissionNormal); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repository: %w", err)
		}

		remote, err := repo.Remote("origin")
		if err != nil {
			return fmt.Errorf("failed to get remote: %w", err)
		}

		auth := authMethod(gitURL)
		err = remote.Fetch(&git.FetchOptions{
			Auth:     auth,
			Progress: os.Stdout,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to fetch updates: %w", err)
		}

		return nil
	}

	auth := authMethod(gitURL)
	_, err := git.PlainClone(localPath, false, &git.CloneOptions{
		URL:      gitURL,
		Auth:     auth,
		Progress: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	return nil
}

// authMethod picks an auth mechanism for the URL: ssh key for ssh URLs,
// then GIT_USERNAME/GIT_PASSWORD, then GITHUB_TOKEN for https.
func authMethod(gitURL string) transport.AuthMethod {
	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		sshKeyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(sshKeyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	if strings.HasPrefix(gitURL, "https://") {
		username := os.Getenv("GIT_USERNAME")
		password := os.Getenv("GIT_PASSWORD")
		if username != "" && password != "" {
			return &http.BasicAuth{
				Username: username,
				Password: password,
			}
		}

		token := os.Getenv("GITHUB_TOKEN")
		if token != "" {
			return &http.BasicAuth{
				Username: "token",
				Password: token,
			}
		}
	}

	return nil
}

// CacheDirectory returns where dataset repositories are cached locally.
func CacheDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".surveyforge", "repos")
}

// CheckoutBranch switches the worktree to the named branch, creating a
// local branch from origin when one does not exist yet.
func CheckoutBranch(repoPath, branchName string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	branchRef := plumbing.ReferenceName("refs/heads/" + branchName)
	_, err = repo.Reference(branchRef, false)
	if err == nil {
		return worktree.Checkout(&git.CheckoutOptions{
			Branch: branchRef,
			Force:  false,
		})
	}

	remoteRef := plumbing.ReferenceName("refs/remotes/origin/" + branchName)
	ref, err := repo.Reference(remoteRef, false)
	if err == nil {
		return worktree.Checkout(&git.CheckoutOptions{
			Branch: branchRef,
			Hash:   ref.Hash(),
			Create: true,
		})
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	return worktree.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
		Hash:   head.Hash(),
		Create: true,
	})
}

// CurrentBranch returns the branch the repository worktree is on.
func CurrentBranch(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}

	refName := head.Name()
	if refName.IsBranch() {
		return refName.Short(), nil
	}

	return "", fmt.Errorf("HEAD is not pointing to a branch")
}
