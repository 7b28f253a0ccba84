// Package gitinfo answers a handful of read-only questions about the git
// repository surrounding the current working directory. It shells out to
// the git binary; every query is side-effect free.
package gitinfo

import (
	"os/exec"
	"strings"
)

func run(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Present reports whether git is installed and the working directory is
// inside a repository.
func Present() bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	out, err := run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Root returns the repository's top-level directory.
func Root() (string, error) {
	return run("rev-parse", "--show-toplevel")
}

// URL returns the origin remote URL, normalized to its web form. With
// withCommit it points at the tree of the current commit.
func URL(withCommit bool) (string, error) {
	remote, err := run("remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	if !withCommit {
		return webURL(remote), nil
	}
	hash, err := run("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return CommitURL(remote, hash), nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func HasUncommittedChanges() (bool, error) {
	out, err := run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CommitURL composes the browsable URL of a commit's tree from a remote
// URL and a commit hash.
func CommitURL(remote, hash string) string {
	return webURL(remote) + "/tree/" + hash
}

// webURL normalizes ssh-style remotes (git@host:owner/repo.git) to their
// https form and strips the .git suffix.
func webURL(remote string) string {
	remote = strings.TrimSuffix(remote, ".git")
	if strings.HasPrefix(remote, "git@") {
		remote = strings.TrimPrefix(remote, "git@")
		remote = "https://" + strings.Replace(remote, ":", "/", 1)
	}
	return remote
}
