// Package transfer copies single objects between buckets. Each invocation
// is a full reconciliation of one key: the destination is re-probed at copy
// time rather than trusted from an earlier snapshot, since other agents may
// mutate it while the run is in progress.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/inventory"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/mimeutil"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/s3client"
)

const (
	// maxInMemorySize is the largest object read as a single buffer.
	// Anything bigger streams through fixed-size parts so peak memory per
	// transfer stays bounded no matter the object size.
	maxInMemorySize = 10 * 1024 * 1024

	// partSize is the chunk size for streamed uploads.
	partSize = 8 * 1024 * 1024
)

// Status is the terminal state of one transfer attempt.
type Status int

const (
	// Copied means the object's bytes were written to the target.
	Copied Status = iota
	// Skipped means the target already held a matching copy.
	Skipped
	// Interrupted means the attempt was abandoned before any I/O because a
	// shutdown was requested.
	Interrupted
	// Failed means probe, read or write failed for this object.
	Failed
)

func (s Status) String() string {
	switch s {
	case Copied:
		return "copied"
	case Skipped:
		return "skipped"
	case Interrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

// Result is the outcome of one transfer attempt.
type Result struct {
	Key    string
	Status Status
	Err    error
	Kind   s3client.Kind
}

// Copier moves objects from the source bucket to the target bucket.
type Copier struct {
	source       s3client.API
	target       s3client.API
	sourceBucket string
	targetBucket string
	dryRun       bool
	stopped      func() bool
	logger       *slog.Logger
}

// Options configures a Copier.
type Options struct {
	Source       s3client.API
	Target       s3client.API
	SourceBucket string
	TargetBucket string
	DryRun       bool
	// Stopped is polled before any I/O starts. May be nil.
	Stopped func() bool
	Logger  *slog.Logger
}

func NewCopier(opts Options) *Copier {
	stopped := opts.Stopped
	if stopped == nil {
		stopped = func() bool { return false }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Copier{
		source:       opts.Source,
		target:       opts.Target,
		sourceBucket: opts.SourceBucket,
		targetBucket: opts.TargetBucket,
		dryRun:       opts.DryRun,
		stopped:      stopped,
		logger:       logger,
	}
}

// targetState is the destination's view of a key at probe time.
type targetState struct {
	exists      bool
	size        int64
	contentType string
}

// Copy reconciles one object. Failures are absorbed into the Result; they
// never abort sibling transfers.
func (c *Copier) Copy(ctx context.Context, d inventory.Descriptor) Result {
	if c.stopped() {
		return Result{Key: d.Key, Status: Interrupted}
	}

	resolved, err := c.resolveContentType(ctx, d.Key)
	if err != nil {
		return c.fail(d.Key, "resolve content type", err)
	}

	state, err := c.probeTarget(ctx, d.Key)
	if err != nil {
		return c.fail(d.Key, "probe target", err)
	}

	if state.exists && state.size == d.Size && mimeutil.Matches(resolved, state.contentType) {
		return Result{Key: d.Key, Status: Skipped}
	}

	if c.dryRun {
		c.logger.Info("would copy", "key", d.Key, "size", d.Size, "content_type", resolved)
		return Result{Key: d.Key, Status: Copied}
	}

	if err := c.copyObject(ctx, d, resolved); err != nil {
		return c.fail(d.Key, "copy", err)
	}

	return Result{Key: d.Key, Status: Copied}
}

// resolveContentType derives the type the target copy should carry. The
// source's own declared type takes precedence; a source that vanished
// mid-run resolves from the extension and the subsequent read reports the
// real failure.
func (c *Copier) resolveContentType(ctx context.Context, key string) (string, error) {
	head, err := c.source.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.sourceBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if s3client.IsNotFound(err) {
			return mimeutil.Resolve(key, ""), nil
		}
		return "", fmt.Errorf("head source object: %w", err)
	}
	return mimeutil.Resolve(key, aws.ToString(head.ContentType)), nil
}

// probeTarget reports the destination's current state for key. A missing
// object is the normal copy-required signal, not an error.
func (c *Copier) probeTarget(ctx context.Context, key string) (targetState, error) {
	head, err := c.target.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.targetBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if s3client.IsNotFound(err) {
			return targetState{}, nil
		}
		return targetState{}, fmt.Errorf("head target object: %w", err)
	}

	return targetState{
		exists:      true,
		size:        aws.ToInt64(head.ContentLength),
		contentType: aws.ToString(head.ContentType),
	}, nil
}

func (c *Copier) copyObject(ctx context.Context, d inventory.Descriptor, contentType string) error {
	obj, err := c.source.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.sourceBucket),
		Key:    aws.String(d.Key),
	})
	if err != nil {
		return fmt.Errorf("get source object: %w", err)
	}
	defer obj.Body.Close()

	if d.Size > maxInMemorySize {
		return c.putStreamed(ctx, d.Key, obj, contentType)
	}
	return c.putBuffered(ctx, d.Key, obj, contentType)
}

// putBuffered reads the whole body and writes it in one call. Small objects
// dominate most inventories and the single buffer keeps request overhead
// low; having the bytes also allows upgrading a generic content type by
// sniffing.
func (c *Copier) putBuffered(ctx context.Context, key string, obj *s3.GetObjectOutput, contentType string) error {
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read source object: %w", err)
	}

	contentType = mimeutil.Sniff(body, contentType)

	_, err = c.target.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.targetBucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata:      obj.Metadata,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// putStreamed pipes the body through the transfer manager in fixed-size
// parts. Uploader concurrency stays at 1 so the configured transfer limit
// remains the only source of parallel remote I/O.
func (c *Copier) putStreamed(ctx context.Context, key string, obj *s3.GetObjectOutput, contentType string) error {
	uploader := manager.NewUploader(c.target, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = 1
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.targetBucket),
		Key:         aws.String(key),
		Body:        obj.Body,
		ContentType: aws.String(contentType),
		Metadata:    obj.Metadata,
	})
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

func (c *Copier) fail(key, op string, err error) Result {
	kind := s3client.Classify(err)
	c.logger.Error("transfer failed",
		"key", key,
		"op", op,
		"kind", kind.String(),
		"code", s3client.Code(err),
	)
	return Result{
		Key:    key,
		Status: Failed,
		Err:    fmt.Errorf("%s %s: %w", op, key, err),
		Kind:   kind,
	}
}
