package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// TagRefPrefix is the reference namespace holding tags.
const TagRefPrefix = "refs/tags/"

// ErrUnsupportedTagObject is returned when a tag reference names an object that is
// neither a tag object nor a commit.
var ErrUnsupportedTagObject = errors.New("tag reference points at unsupported object")

// TagRef is a tag reference resolved exactly once against the object store.
type TagRef struct {
	Name string
	// Annotated is true when the reference points at a tag object.
	Annotated bool
	// Target is the tagged object for annotated tags, the commit otherwise.
	Target Hash
	// Message is the tag message, empty for lightweight tags.
	Message string
	// Identity is the tagger for annotated tags and the commit author otherwise.
	Identity Signature
}

// TagNames lists the short names of every tag reference.
func (r *Repository) TagNames() ([]string, error) {
	names, err := r.repo.Tags.List()
	if err != nil {
		return nil, fmt.Errorf("%w: list tags: %w", ErrReferenceResolution, err)
	}

	return names, nil
}

// LookupTagRef resolves refs/tags/<name> and classifies the object it points at.
func (r *Repository) LookupTagRef(name string) (TagRef, error) {
	ref, err := r.repo.References.Lookup(TagRefPrefix + name)
	if err != nil {
		return TagRef{}, fmt.Errorf("%w: lookup tag %s: %w", ErrReferenceResolution, name, err)
	}
	defer ref.Free()

	oid := ref.Target()
	if oid == nil {
		return TagRef{}, fmt.Errorf("%w: tag %s is symbolic", ErrReferenceResolution, name)
	}

	obj, err := r.repo.Lookup(oid)
	if err != nil {
		return TagRef{}, fmt.Errorf("%w: lookup tag object %s: %w", ErrObjectNotFound, name, err)
	}
	defer obj.Free()

	switch obj.Type() {
	case git2go.ObjectTag:
		tag, tagErr := obj.AsTag()
		if tagErr != nil {
			return TagRef{}, fmt.Errorf("%w: read tag %s: %w", ErrObjectNotFound, name, tagErr)
		}

		return TagRef{
			Name:      name,
			Annotated: true,
			Target:    HashFromOid(tag.TargetId()),
			Message:   tag.Message(),
			Identity:  signatureFrom(tag.Tagger()),
		}, nil
	case git2go.ObjectCommit:
		commit, commitErr := obj.AsCommit()
		if commitErr != nil {
			return TagRef{}, fmt.Errorf("%w: read tagged commit %s: %w", ErrObjectNotFound, name, commitErr)
		}

		return TagRef{
			Name:     name,
			Target:   HashFromOid(commit.Id()),
			Identity: signatureFrom(commit.Author()),
		}, nil
	default:
		return TagRef{}, fmt.Errorf("%w: %s is a %s", ErrUnsupportedTagObject, name, obj.Type())
	}
}

// CreateAnnotatedTag writes a tag object for target and a reference to it.
func (r *Repository) CreateAnnotatedTag(name string, target Hash, tagger Signature, message string) (Hash, error) {
	commit, err := r.repo.LookupCommit(target.ToOid())
	if err != nil {
		return Hash{}, fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, target, err)
	}
	defer commit.Free()

	oid, err := r.repo.Tags.Create(name, commit, tagger.native(), message)
	if err != nil {
		return Hash{}, fmt.Errorf("create tag %s: %w", name, err)
	}

	return HashFromOid(oid), nil
}

// CreateLightweightTag writes a reference pointing directly at target.
func (r *Repository) CreateLightweightTag(name string, target Hash) (Hash, error) {
	commit, err := r.repo.LookupCommit(target.ToOid())
	if err != nil {
		return Hash{}, fmt.Errorf("%w: lookup commit %s: %w", ErrObjectNotFound, target, err)
	}
	defer commit.Free()

	oid, err := r.repo.Tags.CreateLightweight(name, commit, false)
	if err != nil {
		return Hash{}, fmt.Errorf("create lightweight tag %s: %w", name, err)
	}

	return HashFromOid(oid), nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repository) DeleteTag(name string) error {
	err := r.repo.Tags.Remove(name)
	if isNotFound(err) {
		return fmt.Errorf("%w: delete tag %s: %w", ErrReferenceResolution, name, err)
	}

	if err != nil {
		return fmt.Errorf("delete tag %s: %w", name, err)
	}

	return nil
}
