package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/grifflabs/marketpulse/internal/domain"
	"github.com/grifflabs/marketpulse/internal/pipeline"
)

// uploadPartSize is the part size for multipart uploads (8 MiB).
const uploadPartSize int64 = 8 * 1024 * 1024

// Archiver uploads expiring snapshot rows as JSON Lines objects, one object
// per sweep per metric, keyed by the retention cutoff date.
type Archiver struct {
	client *s3.Client
	bucket string
}

// NewArchiver creates an Archiver writing to the client's bucket.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// ArchiveSnapshots serializes rows as JSONL and uploads them under
// snapshots/{metric}/{cutoff-date}/{upload-time}.jsonl. It returns the
// object key.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, metric domain.Metric, rows []domain.SnapshotRow, cutoff time.Time) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return "", fmt.Errorf("s3blob: encode snapshot row: %w", err)
		}
	}

	key := fmt.Sprintf("snapshots/%s/%s/%s.jsonl",
		metric,
		cutoff.UTC().Format("2006-01-02"),
		time.Now().UTC().Format("20060102T150405Z"),
	)

	uploader := manager.NewUploader(a.client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return key, nil
}

// Compile-time interface check.
var _ pipeline.SnapshotArchiver = (*Archiver)(nil)
