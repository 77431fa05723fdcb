// Package tags lists, creates and deletes tags, telling annotated tags apart
// from lightweight ones.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// Default tagger identity when the repository config has none.
const (
	DefaultTaggerName  = "Unknown"
	DefaultTaggerEmail = "unknown@example.com"
)

// Kind distinguishes tag flavours.
type Kind string

// Tag kinds.
const (
	Annotated   Kind = "annotated"
	Lightweight Kind = "lightweight"
)

// Tag is one entry of the catalog. For annotated tags the identity and time
// are the tagger's; for lightweight tags they are the tagged commit author's
// and Message is empty.
type Tag struct {
	Name        string `json:"name"         yaml:"name"`
	Kind        Kind   `json:"kind"         yaml:"kind"`
	Target      string `json:"target"       yaml:"target"`
	Message     string `json:"message"      yaml:"message"`
	TaggerName  string `json:"tagger_name"  yaml:"tagger_name"`
	TaggerEmail string `json:"tagger_email" yaml:"tagger_email"`
	Timestamp   int64  `json:"timestamp"    yaml:"timestamp"`
}

// Catalog manages the tags of one repository.
type Catalog struct {
	repo   *gitlib.Repository
	logger *slog.Logger
}

// NewCatalog creates a Catalog. A nil logger discards diagnostics.
func NewCatalog(repo *gitlib.Repository, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Catalog{repo: repo, logger: logger}
}

// List returns every tag sorted by name. Tags pointing at objects other than
// tag objects or commits are skipped.
func (c *Catalog) List(ctx context.Context) ([]Tag, error) {
	names, err := c.repo.TagNames()
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	out := make([]Tag, 0, len(names))

	for _, name := range names {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		ref, lookupErr := c.repo.LookupTagRef(name)
		if errors.Is(lookupErr, gitlib.ErrUnsupportedTagObject) {
			c.logger.DebugContext(ctx, "skipping tag", "tag", name, "reason", lookupErr.Error())

			continue
		}

		if lookupErr != nil {
			return nil, lookupErr
		}

		out = append(out, fromRef(ref))
	}

	return out, nil
}

// Get returns a single tag by name.
func (c *Catalog) Get(_ context.Context, name string) (Tag, error) {
	ref, err := c.repo.LookupTagRef(name)
	if err != nil {
		return Tag{}, err
	}

	return fromRef(ref), nil
}

func fromRef(ref gitlib.TagRef) Tag {
	kind := Lightweight
	if ref.Annotated {
		kind = Annotated
	}

	return Tag{
		Name:        ref.Name,
		Kind:        kind,
		Target:      ref.Target.String(),
		Message:     ref.Message,
		TaggerName:  ref.Identity.Name,
		TaggerEmail: ref.Identity.Email,
		Timestamp:   ref.Identity.Unix(),
	}
}

// CreateOptions describes a new tag.
type CreateOptions struct {
	// Message makes the tag annotated when non-nil.
	Message *string
	// Target is a revision expression; empty means HEAD.
	Target string
}

// Create writes a tag and returns the id of the tag object for annotated tags
// or of the tagged commit for lightweight ones.
func (c *Catalog) Create(ctx context.Context, name string, opts CreateOptions) (string, error) {
	target, err := c.resolveTarget(opts.Target)
	if err != nil {
		return "", err
	}

	if opts.Message == nil {
		id, createErr := c.repo.CreateLightweightTag(name, target)
		if createErr != nil {
			return "", createErr
		}

		c.logger.InfoContext(ctx, "created tag", "tag", name, "kind", Lightweight, "target", target.String())

		return id.String(), nil
	}

	id, err := c.repo.CreateAnnotatedTag(name, target, c.tagger(), *opts.Message)
	if err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "created tag", "tag", name, "kind", Annotated, "target", target.String())

	return id.String(), nil
}

// Delete removes a tag.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	err := c.repo.DeleteTag(name)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "deleted tag", "tag", name)

	return nil
}

func (c *Catalog) resolveTarget(rev string) (gitlib.Hash, error) {
	if rev == "" {
		hash, err := c.repo.Head()
		if err != nil {
			return gitlib.Hash{}, fmt.Errorf("tag target: %w", err)
		}

		return hash, nil
	}

	return c.repo.ResolveRevision(rev)
}

func (c *Catalog) tagger() gitlib.Signature {
	name, ok := c.repo.ConfigString("user.name")
	if !ok || name == "" {
		name = DefaultTaggerName
	}

	email, ok := c.repo.ConfigString("user.email")
	if !ok || email == "" {
		email = DefaultTaggerEmail
	}

	return gitlib.Signature{Name: name, Email: email}
}
