package graph

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"strings"

	"github.com/sandeepkandula/archivesync/auth"
	"github.com/sandeepkandula/archivesync/sync"
)

type driveItem struct {
	Name   string `json:"name"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	DownloadURL string `json:"@microsoft.graph.downloadUrl"`
}

func (it driveItem) entry() sync.Entry {
	switch {
	case it.Folder != nil:
		return sync.Entry{Name: it.Name, Kind: sync.KindFolder}
	case it.File != nil:
		return sync.Entry{Name: it.Name, Kind: sync.KindFile, Locator: it.DownloadURL}
	default:
		return sync.Entry{Name: it.Name}
	}
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// Lister enumerates folders of one drive, following @odata.nextLink.
type Lister struct {
	c       *Client
	siteID  string
	driveID string
}

var _ sync.Lister = (*Lister)(nil)

// Lister returns a sync.Lister over the drive driveID of site siteID.
func (c *Client) Lister(siteID, driveID string) *Lister {
	return &Lister{c: c, siteID: siteID, driveID: driveID}
}

func (l *Lister) List(ctx context.Context, cred auth.Credential, remotePath string) iter.Seq2[sync.Entry, error] {
	return func(yield func(sync.Entry, error) bool) {
		next := l.childrenURL(remotePath)
		for next != "" {
			var page childrenPage
			if err := l.c.getJSON(ctx, cred, next, &page); err != nil {
				yield(sync.Entry{}, listingError(remotePath, err))
				return
			}
			for _, it := range page.Value {
				if !yield(it.entry(), nil) {
					return
				}
			}
			next = page.NextLink
		}
	}
}

func (l *Lister) childrenURL(remotePath string) string {
	drive := l.c.baseURL + "/sites/" + l.siteID + "/drives/" + l.driveID
	p := sync.NormalizePath(remotePath)
	if p == "" {
		return drive + "/root/children"
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return drive + "/root:/" + strings.Join(segs, "/") + ":/children"
}

func listingError(remotePath string, err error) *sync.ListingError {
	le := &sync.ListingError{Path: remotePath, Err: err}
	var (
		se *StatusError
		ae *auth.Error
	)
	switch {
	case errors.As(err, &ae):
		le.StatusCode = ae.StatusCode
	case errors.As(err, &se):
		le.StatusCode = se.StatusCode
	}
	return le
}
