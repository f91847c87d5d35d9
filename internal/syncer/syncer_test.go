package syncer

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/config"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/s3client"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/stats"
)

type memObject struct {
	data        []byte
	contentType string
}

// memBucket is a minimal in-memory API for small-object round trips. The
// embedded interface panics on multipart calls, which these tests never
// reach.
type memBucket struct {
	s3client.API
	mu      sync.Mutex
	objects map[string]memObject
	listErr error
	headErr map[string]error
	getHook func()
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string]memObject{}, headErr: map[string]error{}}
}

func (b *memBucket) set(key, contentType string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{data: data, contentType: contentType}
}

func (b *memBucket) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(b.objects[k].data))),
		})
	}
	return out, nil
}

func (b *memBucket) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(params.Key)
	if err, ok := b.headErr[key]; ok {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (b *memBucket) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getHook != nil {
		b.getHook()
	}
	obj, ok := b.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (b *memBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(params.Key)] = memObject{
		data:        data,
		contentType: aws.ToString(params.ContentType),
	}
	return &s3.PutObjectOutput{}, nil
}

func testConfig(concurrency int) *config.Config {
	return &config.Config{
		Source:      config.Side{Bucket: "src"},
		Target:      config.Side{Bucket: "dst"},
		Concurrency: concurrency,
	}
}

func newSyncer(source, target *memBucket, cfg *config.Config, opts ...func(*Options)) *Syncer {
	o := Options{
		Config: cfg,
		Source: source,
		Target: target,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func TestRunCopiesEverythingIntoEmptyTarget(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	source.set("a.json", "application/json", []byte(`{}`))
	source.set("b.png", "image/png", []byte("png"))
	source.set("c.txt", "text/plain; charset=utf-8", []byte("hello"))

	summary, err := newSyncer(source, target, testConfig(2)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, stats.Summary{Total: 3, Copied: 3}, summary)
	assert.Len(t, target.objects, 3)
}

func TestSecondRunSkipsEverything(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	source.set("a.json", "application/json", []byte(`{"k":1}`))
	source.set("b.txt", "text/plain; charset=utf-8", []byte("hello"))

	s := newSyncer(source, target, testConfig(2))

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), first.Copied)

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), second.Copied)
	assert.Equal(t, second.Total, second.Skipped, "idempotent rerun must skip all")
}

func TestEnumerationFailureIsFatal(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	source.listErr = &smithy.GenericAPIError{Code: "AccessDenied"}

	_, err := newSyncer(source, target, testConfig(2)).Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, target.objects, "no transfers may run after a listing failure")
}

func TestPerObjectErrorDoesNotAbortRun(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	source.set("good-1.txt", "text/plain; charset=utf-8", []byte("a"))
	source.set("bad.txt", "text/plain; charset=utf-8", []byte("b"))
	source.set("good-2.txt", "text/plain; charset=utf-8", []byte("c"))
	target.headErr["bad.txt"] = &smithy.GenericAPIError{Code: "AccessDenied"}

	summary, err := newSyncer(source, target, testConfig(1)).Run(context.Background())

	require.NoError(t, err, "per-object failures never escalate")
	assert.Equal(t, uint64(3), summary.Total)
	assert.Equal(t, uint64(2), summary.Copied)
	assert.Equal(t, uint64(1), summary.Errors)
	assert.False(t, summary.Interrupted)
}

func TestInterruptedRunReportsDeficit(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		source.set(key+".txt", "text/plain; charset=utf-8", []byte(key))
	}

	// Flip the stop token from inside the pipeline: after the second read
	// the remaining objects in flight see Stopped and the pool admits no
	// further batches.
	var reads atomic.Int64
	var stopped atomic.Bool
	source.getHook = func() {
		if reads.Add(1) == 2 {
			stopped.Store(true)
		}
	}
	s := newSyncer(source, target, testConfig(1), func(o *Options) {
		o.Stopped = stopped.Load
	})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	processed := summary.Copied + summary.Skipped + summary.Errors
	assert.True(t, summary.Interrupted)
	assert.LessOrEqual(t, processed, summary.Total)
	assert.Equal(t, summary.Total-processed, summary.NotProcessed)
	assert.Greater(t, summary.NotProcessed, uint64(0), "stop must leave a deficit")
}

func TestEmptySourceIsANoop(t *testing.T) {
	summary, err := newSyncer(newMemBucket(), newMemBucket(), testConfig(4)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, stats.Summary{}, summary)
}

func TestExcludedKeysAreNeverTransferred(t *testing.T) {
	source := newMemBucket()
	target := newMemBucket()
	source.set("keep/a.txt", "text/plain; charset=utf-8", []byte("a"))
	source.set("logs/app.log", "text/plain; charset=utf-8", []byte("log"))

	cfg := testConfig(2)
	cfg.Excludes = []string{"logs/**"}

	summary, err := newSyncer(source, target, cfg).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Total)
	_, copied := target.objects["logs/app.log"]
	assert.False(t, copied)
}
