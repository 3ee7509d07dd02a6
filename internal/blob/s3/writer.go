package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// S3 rejects multipart parts under 5 MiB, so bodies below that go up in a
// single PutObject.
const minPartSize int64 = 5 << 20

// Writer stores archive objects in the client's bucket.
type Writer struct {
	api      manager.UploadAPIClient
	bucket   string
	uploader *manager.Uploader
}

// NewWriter returns a Writer bound to c's bucket.
func NewWriter(c *Client) *Writer {
	return newWriter(c.api, c.bucket)
}

func newWriter(api manager.UploadAPIClient, bucket string) *Writer {
	return &Writer{
		api:    api,
		bucket: bucket,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			u.PartSize = minPartSize
			u.Concurrency = 3
		}),
	}
}

// Write uploads obj, switching to a concurrent multipart upload once the
// body reaches one part.
func (w *Writer) Write(ctx context.Context, obj domain.BlobObject) error {
	if obj.Key == "" {
		return fmt.Errorf("s3blob: write: empty key")
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(obj.Key),
		Body:     bytes.NewReader(obj.Body),
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	if int64(len(obj.Body)) < minPartSize {
		input.ContentLength = aws.Int64(int64(len(obj.Body)))
		if _, err := w.api.PutObject(ctx, input); err != nil {
			return fmt.Errorf("s3blob: put %s: %w", obj.Key, err)
		}
		return nil
	}
	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s (%d bytes): %w", obj.Key, len(obj.Body), err)
	}
	return nil
}
