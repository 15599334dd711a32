package gittag

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/recipe/recipetest"
)

// setupTestRepo creates a repository with a single commit.
func setupTestRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.php"), []byte("<?php\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("index.php")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, repo
}

func TestTagCreatesAnnotatedTag(t *testing.T) {
	dir, repo := setupTestRepo(t)

	tagger, err := Open(dir)
	require.NoError(t, err)
	ref, err := tagger.Tag("production-1", "Deployed", "jane")
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)
	obj, err := repo.TagObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), obj.Target)
	assert.Contains(t, obj.Message, "Deployed")

	commit, err := tagger.Target(ref)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), commit)
	assert.NotEqual(t, ref.Hash(), commit)

	_, err = tagger.Tag("production-1", "Deployed", "jane")
	assert.ErrorIs(t, err, ErrTagExists)
}

func TestOpenFailsOutsideRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestGitTagTask(t *testing.T) {
	dir, repo := setupTestRepo(t)

	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("git_repository_path", dir)
	h.Global.Set("user", "jane")
	h.Remote("production", map[string]any{"git_tag_name": "release-{{alias}}"})
	h.Remote("mirror", map[string]any{"git_tag_name": "release-{{alias}}"})

	require.NoError(t, h.Run("git:tag", "production", "mirror"))

	_, err := repo.Tag("release-production")
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Contains(t, h.Out.String(), "Tagged "+head.Hash().String()[:7]+" as release-production")
	_, err = repo.Tag("release-mirror")
	assert.ErrorIs(t, err, git.ErrTagNotFound)
	assert.Empty(t, h.Runner("production").Commands())
}

func TestGitTagDefaultName(t *testing.T) {
	dir, repo := setupTestRepo(t)

	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("git_repository_path", dir)
	h.Remote("staging", map[string]any{"stage": "staging"})

	require.NoError(t, h.Run("git:tag", "staging"))

	tags, err := repo.Tags()
	require.NoError(t, err)
	var names []string
	require.NoError(t, tags.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	}))
	require.Len(t, names, 1)
	assert.Regexp(t, `^staging-\d{14}$`, names[0])
}

func TestGitTagPush(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary required for the file transport")
	}
	dir, repo := setupTestRepo(t)
	remoteDir := t.TempDir()
	remote, err := git.PlainInit(remoteDir, true)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{remoteDir}})
	require.NoError(t, err)

	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("git_repository_path", dir)
	h.Global.Set("git_tag_push", true)
	h.Remote("production", map[string]any{"git_tag_name": "v1"})

	require.NoError(t, h.Run("git:tag", "production"))

	_, err = remote.Tag("v1")
	assert.NoError(t, err)
}

func TestGitTagDryRun(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.DryRun = true
	h.Global.Set("git_repository_path", "/nonexistent")
	h.Remote("production", map[string]any{"git_tag_name": "v1"})

	require.NoError(t, h.Run("git:tag", "production"))
	assert.Contains(t, h.Out.String(), "[DRY-RUN] Would tag HEAD of /nonexistent as v1")
}
