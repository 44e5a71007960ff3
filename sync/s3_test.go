package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkandula/archivesync/auth"
)

func TestFullKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", "foo.zip", "foo.zip"},
		{"backups", "foo.zip", "backups/foo.zip"},
		{"backups/", "foo.zip", "backups/foo.zip"},
		{"backups", "a/b/c.zip", "backups/a/b/c.zip"},
		{"", "/foo.zip", "foo.zip"}, // leading slash stripped
		{"backups/", "", "backups"},
		{"", "", ""},
	}

	for _, tt := range tests {
		if got := fullKey(tt.prefix, tt.rel); got != tt.want {
			t.Errorf("fullKey(prefix=%q, rel=%q) = %q, want %q", tt.prefix, tt.rel, got, tt.want)
		}
	}
}

func TestFolderKey(t *testing.T) {
	assert.Equal(t, "", folderKey(""))
	assert.Equal(t, "images/", folderKey("images"))
	assert.Equal(t, "images/", folderKey("images/"))
}

// fakeS3 serves ListObjectsV2 pages keyed by continuation token.
type fakeS3 struct {
	pages  map[string]*s3.ListObjectsV2Output
	err    error
	inputs []s3.ListObjectsV2Input
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[aws.ToString(in.ContinuationToken)], nil
}

func collect(t *testing.T, l Lister, p string) ([]Entry, error) {
	t.Helper()
	var entries []Entry
	for e, err := range l.List(context.Background(), auth.Credential{}, p) {
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func TestS3Lister_paginatesAndSplitsFolders(t *testing.T) {
	client := &fakeS3{pages: map[string]*s3.ListObjectsV2Output{
		"": {
			CommonPrefixes:        []types.CommonPrefix{{Prefix: aws.String("images/linux/rhel/")}},
			Contents:              []types.Object{{Key: aws.String("images/linux/")}, {Key: aws.String("images/linux/a.zip")}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("page2"),
		},
		"page2": {
			CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("images/linux/sles/")}},
			Contents:       []types.Object{{Key: aws.String("images/linux/readme.txt")}},
			IsTruncated:    aws.Bool(false),
		},
	}}

	entries, err := collect(t, NewS3Lister(client, "bucket", "images"), "linux")
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Name: "rhel", Kind: KindFolder},
		{Name: "a.zip", Kind: KindFile, Locator: "images/linux/a.zip"},
		{Name: "sles", Kind: KindFolder},
		{Name: "readme.txt", Kind: KindFile, Locator: "images/linux/readme.txt"},
	}, entries)

	require.Len(t, client.inputs, 2)
	assert.Equal(t, "images/linux/", aws.ToString(client.inputs[0].Prefix))
	assert.Equal(t, "/", aws.ToString(client.inputs[0].Delimiter))
	assert.Equal(t, "bucket", aws.ToString(client.inputs[0].Bucket))
	assert.Equal(t, "page2", aws.ToString(client.inputs[1].ContinuationToken))
}

func TestS3Lister_rootOfBucket(t *testing.T) {
	client := &fakeS3{pages: map[string]*s3.ListObjectsV2Output{
		"": {Contents: []types.Object{{Key: aws.String("top.zip")}}},
	}}

	entries, err := collect(t, NewS3Lister(client, "bucket", ""), "")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "top.zip", Kind: KindFile, Locator: "top.zip"}}, entries)
	assert.Equal(t, "", aws.ToString(client.inputs[0].Prefix))
}

func TestS3Lister_accessDenied(t *testing.T) {
	client := &fakeS3{err: &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
			Err:      errors.New("AccessDenied"),
		},
	}}

	_, err := collect(t, NewS3Lister(client, "bucket", ""), "private")
	var le *ListingError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, http.StatusForbidden, le.StatusCode)
	assert.Equal(t, "private", le.Path)

	var ae *auth.Error
	assert.ErrorAs(t, err, &ae)
}

type fakeDownloader struct {
	content string
	keys    []string
	err     error
}

func (d *fakeDownloader) Download(_ context.Context, w io.WriterAt, input *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	d.keys = append(d.keys, aws.ToString(input.Key))
	if d.err != nil {
		return 0, d.err
	}
	n, err := w.WriteAt([]byte(d.content), 0)
	return int64(n), err
}

func TestS3DownloadSink_Store(t *testing.T) {
	d := &fakeDownloader{content: "archive"}
	sink := &S3DownloadSink{downloader: d, bucket: "bucket"}
	dest := filepath.Join(t.TempDir(), "out")

	require.NoError(t, sink.Store(context.Background(), auth.Credential{}, "images/a.zip", dest, "a.zip"))

	data, err := os.ReadFile(filepath.Join(dest, "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
	assert.Equal(t, []string{"images/a.zip"}, d.keys)
}

func TestS3DownloadSink_failureLeavesNoFile(t *testing.T) {
	sink := &S3DownloadSink{downloader: &fakeDownloader{err: errors.New("NoSuchKey")}, bucket: "bucket"}
	dest := t.TempDir()

	err := sink.Store(context.Background(), auth.Credential{}, "gone.zip", dest, "gone.zip")
	require.Error(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeUploader struct {
	inputs []s3.PutObjectInput
	bodies []string
}

func (u *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.inputs = append(u.inputs, *input)
	u.bodies = append(u.bodies, string(body))
	return &manager.UploadOutput{}, nil
}

func TestS3UploadSink_Store(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, "zip-bytes")
	}))
	defer srv.Close()

	u := &fakeUploader{}
	sink := &S3UploadSink{
		uploader:     u,
		client:       srv.Client(),
		bucket:       "archive",
		prefix:       "mirror/",
		storageClass: types.StorageClassGlacierIr,
	}

	err := sink.Store(context.Background(), auth.Bearer("tok", time.Time{}), srv.URL+"/a.zip", "linux", "a.zip")
	require.NoError(t, err)

	require.Len(t, u.inputs, 1)
	assert.Equal(t, "archive", aws.ToString(u.inputs[0].Bucket))
	assert.Equal(t, "mirror/linux/a.zip", aws.ToString(u.inputs[0].Key))
	assert.Equal(t, types.StorageClassGlacierIr, u.inputs[0].StorageClass)
	assert.Equal(t, "zip-bytes", u.bodies[0])
}

func TestS3UploadSink_rejectsBadName(t *testing.T) {
	sink := &S3UploadSink{uploader: &fakeUploader{}, client: http.DefaultClient, bucket: "b"}
	err := sink.Store(context.Background(), auth.Credential{}, "http://unused.invalid", "", "../a.zip")
	assert.Error(t, err)
}
