package sync

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sandeepkandula/archivesync/auth"
)

// S3Lister presents the keys of a bucket as a folder tree, treating "/" as
// the separator. The SDK signs requests itself, so the credential is unused.
type S3Lister struct {
	client s3.ListObjectsV2APIClient
	bucket string
	prefix string
}

// NewS3Lister creates an S3Lister rooted at prefix within bucket.
func NewS3Lister(client s3.ListObjectsV2APIClient, bucket, prefix string) *S3Lister {
	return &S3Lister{client: client, bucket: bucket, prefix: prefix}
}

func (l *S3Lister) List(ctx context.Context, _ auth.Credential, remotePath string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		prefix := folderKey(fullKey(l.prefix, remotePath))
		paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(l.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(Entry{}, s3ListingError(remotePath, err))
				return
			}
			for _, cp := range page.CommonPrefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
				if name == "" {
					continue
				}
				if !yield(Entry{Name: name, Kind: KindFolder}, nil) {
					return
				}
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				name := strings.TrimPrefix(key, prefix)
				if name == "" || strings.HasSuffix(name, "/") {
					continue // folder marker object
				}
				if !yield(Entry{Name: name, Kind: KindFile, Locator: key}, nil) {
					return
				}
			}
		}
	}
}

// S3Downloader is the part of manager.Downloader used by S3DownloadSink.
type S3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3DownloadSink fetches object keys produced by S3Lister to local disk.
type S3DownloadSink struct {
	downloader S3Downloader
	bucket     string
}

// NewS3DownloadSink creates an S3DownloadSink using a manager.Downloader.
func NewS3DownloadSink(client *s3.Client, bucket string) *S3DownloadSink {
	return &S3DownloadSink{downloader: manager.NewDownloader(client), bucket: bucket}
}

func (s *S3DownloadSink) Store(ctx context.Context, _ auth.Credential, locator, destDir, fileName string) error {
	return writeLocal(destDir, fileName, func(f *os.File) error {
		_, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(locator),
		})
		return err
	})
}

// S3Uploader is the part of manager.Uploader used by S3UploadSink.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3UploadSink streams locator URLs into an S3 bucket using the specified
// storage class. The destination directory of a Store call becomes a key
// prefix below the sink's own prefix.
//
// Recommended storage classes for infrequent access (cheapest first):
//
//	GLACIER_IR   – Glacier Instant Retrieval ($0.004/GB, millisecond access)
//	STANDARD_IA  – Standard Infrequent Access ($0.0125/GB, millisecond access)
//	STANDARD     – Standard ($0.023/GB, always available)
type S3UploadSink struct {
	uploader     S3Uploader
	client       *http.Client
	bucket       string
	prefix       string
	storageClass types.StorageClass
	// Authorize attaches the credential to the download request.
	Authorize bool
}

// NewS3UploadSink creates an S3UploadSink; a nil httpClient means
// http.DefaultClient.
func NewS3UploadSink(client *s3.Client, httpClient *http.Client, bucket, prefix string, storageClass types.StorageClass) *S3UploadSink {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &S3UploadSink{
		uploader:     manager.NewUploader(client),
		client:       httpClient,
		bucket:       bucket,
		prefix:       prefix,
		storageClass: storageClass,
	}
}

func (s *S3UploadSink) Store(ctx context.Context, cred auth.Credential, locator, destDir, fileName string) error {
	if err := checkFileName(fileName); err != nil {
		return err
	}
	body, err := openLocator(ctx, s.client, cred, s.Authorize, locator)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(fullKey(s.prefix, JoinPath(NormalizePath(destDir), fileName))),
		Body:         body,
		StorageClass: s.storageClass,
	})
	return err
}

func fullKey(prefix, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if prefix == "" {
		return rel
	}
	if rel == "" {
		return strings.TrimSuffix(prefix, "/")
	}
	return strings.TrimSuffix(prefix, "/") + "/" + rel
}

// folderKey turns a key into the prefix that lists its children.
func folderKey(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

func s3ListingError(remotePath string, err error) *ListingError {
	le := &ListingError{Path: remotePath, Err: err}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		le.StatusCode = re.HTTPStatusCode()
		if auth.IsAuthStatus(le.StatusCode) {
			le.Err = &auth.Error{Provider: "s3", StatusCode: le.StatusCode, Err: err}
		}
	}
	return le
}
