package sync

import (
	"context"

	"github.com/sandeepkandula/archivesync/auth"
)

// Link is a selected file and the locator it can be fetched from.
type Link struct {
	Name    string
	Locator string
}

// Links lists folder without descending and returns the selected files in
// listing order. Unlike Sync it fails on the first listing error.
func Links(ctx context.Context, lister Lister, cred auth.Credential, folder string, sel Predicate) ([]Link, error) {
	if sel == nil {
		sel = Everything
	}
	dir := NormalizePath(folder)

	var links []Link
	for entry, err := range lister.List(ctx, cred, dir) {
		if err != nil {
			return links, asListingError(dir, err)
		}
		if entry.Kind == KindFile && sel(entry.Name) {
			links = append(links, Link{Name: entry.Name, Locator: entry.Locator})
		}
	}
	return links, nil
}
