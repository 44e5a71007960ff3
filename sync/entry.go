package sync

import (
	"context"
	"iter"
	"path"
	"strings"

	"github.com/sandeepkandula/archivesync/auth"
)

// Kind discriminates remote tree nodes.
type Kind int

const (
	KindUnknown Kind = iota
	KindFolder
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Entry is one child of a remote folder.
type Entry struct {
	Name    string
	Kind    Kind
	Locator string // set for files only; may expire
}

// Lister enumerates the immediate children of a remote folder.
type Lister interface {
	// List yields every child of remotePath, following continuation pages
	// internally. A failed page yields a non-nil error (a *ListingError) and
	// ends the sequence.
	List(ctx context.Context, cred auth.Credential, remotePath string) iter.Seq2[Entry, error]
}

// NormalizePath cleans a slash-separated remote path and strips leading and
// trailing slashes. The root of the remote tree is "".
func NormalizePath(p string) string {
	p = strings.Trim(path.Clean("/"+strings.TrimSpace(p)), "/")
	return p
}

// JoinPath appends name to a remote folder path.
func JoinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func baseName(p string) string {
	if p == "" {
		return "/"
	}
	return path.Base(p)
}
