package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkandula/archivesync/auth"
)

func TestLinks(t *testing.T) {
	tree := newFakeTree().add("OVF", file("a.zip"), folder("sub"), file("b.zip"), file("c.zip")).
		add("OVF/sub", file("a.zip"))

	links, err := Links(context.Background(), tree, auth.Credential{}, "/OVF/", InSet("c.zip", "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, []Link{
		{Name: "a.zip", Locator: "loc://a.zip"},
		{Name: "c.zip", Locator: "loc://c.zip"},
	}, links)
	assert.Equal(t, []string{"OVF"}, tree.calls, "links must not descend")
}

func TestLinks_listingError(t *testing.T) {
	tree := newFakeTree().add("OVF", file("a.zip"))
	tree.fail["OVF"] = errors.New("throttled")

	links, err := Links(context.Background(), tree, auth.Credential{}, "OVF", nil)
	var le *ListingError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "OVF", le.Path)
	assert.Len(t, links, 1)
}
