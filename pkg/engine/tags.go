package engine

import (
	"context"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/tags"
)

// ListTags returns all tags sorted by name.
func (e *Engine) ListTags(ctx context.Context) ([]tags.Tag, error) {
	var list []tags.Tag

	err := e.read(ctx, "list_tags", func(ctx context.Context) error {
		var err error

		list, err = e.catalog.List(ctx)

		return err
	})

	return list, err
}

// GetTag returns a single tag.
func (e *Engine) GetTag(ctx context.Context, name string) (tags.Tag, error) {
	var tag tags.Tag

	err := e.read(ctx, "get_tag", func(ctx context.Context) error {
		var err error

		tag, err = e.catalog.Get(ctx, name)

		return err
	})

	return tag, err
}

// CreateTag creates a tag. A non-nil message makes it annotated; an empty
// target tags HEAD. It returns the id of the new tag object or, for a
// lightweight tag, of the tagged commit.
func (e *Engine) CreateTag(ctx context.Context, name string, message *string, target string) (string, error) {
	var id string

	err := e.write(ctx, "create_tag", func(ctx context.Context) error {
		var err error

		id, err = e.catalog.Create(ctx, name, tags.CreateOptions{Message: message, Target: target})

		return err
	})

	return id, err
}

// DeleteTag removes a tag.
func (e *Engine) DeleteTag(ctx context.Context, name string) error {
	return e.write(ctx, "delete_tag", func(ctx context.Context) error {
		return e.catalog.Delete(ctx, name)
	})
}
