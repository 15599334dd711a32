// Package gittag tags the deployed commit in the local repository and can
// push the tag to a remote.
package gittag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"wpdeploy/pkg/log"
	"wpdeploy/pkg/recipe"
)

// ErrTagExists is returned when the tag name is already taken.
var ErrTagExists = errors.New("tag already exists")

// Tagger creates annotated tags on a repository's HEAD.
type Tagger struct {
	repo *git.Repository
	now  func() time.Time
}

// Open opens the repository at path.
func Open(path string) (*Tagger, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository %s: %w", path, err)
	}
	return &Tagger{repo: repo, now: time.Now}, nil
}

// signature uses user.name and user.email from git configuration, falling
// back to fallbackName.
func (t *Tagger) signature(fallbackName string) *object.Signature {
	sig := &object.Signature{Name: fallbackName, Email: fallbackName + "@localhost", When: t.now()}
	cfg, err := t.repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// Tag creates an annotated tag named name on HEAD.
func (t *Tagger) Tag(name, message, fallbackName string) (*plumbing.Reference, error) {
	head, err := t.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if _, err := t.repo.Tag(name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTagExists, name)
	}
	ref, err := t.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  t.signature(fallbackName),
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return ref, nil
}

// Target returns the commit an annotated tag reference points at.
func (t *Tagger) Target(ref *plumbing.Reference) (plumbing.Hash, error) {
	obj, err := t.repo.TagObject(ref.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read tag %s: %w", ref.Name().Short(), err)
	}
	return obj.Target, nil
}

// Push pushes the tag name to remote.
func (t *Tagger) Push(ctx context.Context, remote, name string) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", name, name))
	err := t.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{spec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push tag %s to %s: %w", name, remote, err)
	}
	return nil
}

// Register adds git:tag.
func Register(r *recipe.Registry) {
	r.Set("git_repository_path", ".")
	r.Set("git_tag_push", false)
	r.Set("git_remote", "origin")
	r.SetFunc("git_tag_name", func(c *recipe.Context) (any, error) {
		prefix := c.Host.Stage()
		if prefix == "" {
			prefix = c.Host.Alias
		}
		return fmt.Sprintf("%s-%s", prefix, time.Now().UTC().Format("20060102150405")), nil
	})

	r.Task("git:tag", func(c *recipe.Context) error {
		cfg := c.Config()
		name, err := c.Parse(cfg.String("git_tag_name", ""))
		if err != nil {
			return err
		}
		if name == "" {
			return errors.New("git_tag_name is empty")
		}
		path := cfg.String("git_repository_path", ".")
		remote := cfg.String("git_remote", "origin")
		push := cfg.Bool("git_tag_push", false)

		if c.DryRun() {
			c.Writeln("[DRY-RUN] Would tag HEAD of %s as %s", path, name)
			return nil
		}

		t, err := Open(path)
		if err != nil {
			return err
		}
		user := cfg.String("user", "wpdeploy")
		message := fmt.Sprintf("Deployed to %s by %s", c.Host.Alias, user)
		ref, err := t.Tag(name, message, user)
		if err != nil {
			return err
		}
		commit, err := t.Target(ref)
		if err != nil {
			return err
		}
		log.L().Info("Created tag", "tag", name, "object", ref.Hash().String(), "commit", commit.String())
		c.Writeln("Tagged %s as %s", commit.String()[:7], name)

		if !push {
			return nil
		}
		if err := t.Push(c.Ctx(), remote, name); err != nil {
			return err
		}
		c.Writeln("Pushed %s to %s", name, remote)
		return nil
	}).Desc("Tag the deployed commit in the local git repository").Once()
}
