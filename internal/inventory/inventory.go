// Package inventory enumerates the source bucket into compact object
// descriptors. Inventories of millions of keys must fit in memory when
// drained, so a descriptor carries nothing beyond key and size.
package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/s3client"
)

// Descriptor identifies one source object. Keys are unique within a bucket.
type Descriptor struct {
	Key  string
	Size int64
}

// Enumerator pages through a bucket's inventory.
type Enumerator struct {
	client   s3client.API
	bucket   string
	excludes []string
}

func NewEnumerator(client s3client.API, bucket string, excludes []string) *Enumerator {
	return &Enumerator{
		client:   client,
		bucket:   bucket,
		excludes: excludes,
	}
}

// Each yields every non-excluded descriptor in paging order. A listing
// failure aborts the enumeration; there is no partial-inventory mode.
func (e *Enumerator) Each(ctx context.Context, fn func(Descriptor) error) error {
	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects in %s: %w", e.bucket, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			excluded, err := isExcluded(*obj.Key, e.excludes)
			if err != nil {
				return fmt.Errorf("match exclude pattern for %s: %w", *obj.Key, err)
			}
			if excluded {
				continue
			}

			if err := fn(Descriptor{Key: *obj.Key, Size: aws.ToInt64(obj.Size)}); err != nil {
				return err
			}
		}
	}

	return nil
}

// Gather drains the full inventory into a slice. The engine needs the total
// up front for batching and progress display.
func (e *Enumerator) Gather(ctx context.Context) ([]Descriptor, error) {
	var descs []Descriptor
	err := e.Each(ctx, func(d Descriptor) error {
		descs = append(descs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descs, nil
}

func isExcluded(key string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, key)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
