package gitlib

import (
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Signature represents a git identity with a timestamp (author, committer or tagger).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Unix returns the signature time in seconds since the epoch.
func (s Signature) Unix() int64 {
	if s.When.IsZero() {
		return 0
	}

	return s.When.Unix()
}

func signatureFrom(sig *git2go.Signature) Signature {
	if sig == nil {
		return Signature{}
	}

	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When}
}

func (s Signature) native() *git2go.Signature {
	when := s.When
	if when.IsZero() {
		when = time.Now()
	}

	return &git2go.Signature{Name: s.Name, Email: s.Email, When: when}
}
