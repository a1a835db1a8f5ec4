// Package archive uploads a finished run's artifacts to a bucket.
// Bucket URLs follow gocloud.dev conventions, so file://, s3://, and
// mem:// all work with the same archiver
package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/runner"
)

type (
	// Archiver copies run artifacts from a working directory into a
	// bucket, keyed <prefix>/<workflow>/<task-id>/<artifact path>
	Archiver struct {
		bucket BucketWriter
		prefix string
	}

	// BucketWriter is the slice of the bucket API the archiver needs
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}
)

var ErrBucketRequired = errors.New("bucket is required")

// New creates an archiver over an already opened bucket
func New(bucket BucketWriter, prefix string) (*Archiver, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Archiver{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Open creates an archiver over a bucket URL. The returned bucket
// should be closed once archiving is done
func Open(
	ctx context.Context, bucketURL, prefix string,
) (*Archiver, *blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, nil, err
	}
	a, err := New(bucket, prefix)
	if err != nil {
		return nil, nil, err
	}
	return a, bucket, nil
}

// ArchiveRun uploads the run's aggregate record, vars file, step
// results, and step logs. Artifacts the run never produced are
// skipped; upload failures are collected so one bad file doesn't
// abandon the rest
func (a *Archiver) ArchiveRun(
	ctx context.Context, ex *runner.Execution,
) error {
	var errs []error
	for _, name := range []string{
		runner.ExecutionResultFile,
		runner.VarsFileName,
	} {
		if err := a.upload(ctx, ex, name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, dir := range []string{
		runner.StepsDirName,
		runner.LogsDirName,
	} {
		errs = append(errs, a.uploadTree(ctx, ex, dir)...)
	}
	return errors.Join(errs...)
}

func (a *Archiver) upload(
	ctx context.Context, ex *runner.Execution, rel string,
) error {
	data, err := os.ReadFile(filepath.Join(ex.Workdir, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.key(ex, rel), data, nil)
}

func (a *Archiver) uploadTree(
	ctx context.Context, ex *runner.Execution, dir string,
) []error {
	var errs []error
	root := filepath.Join(ex.Workdir, dir)
	err := filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(ex.Workdir, path)
			if err != nil {
				return err
			}
			if err := a.upload(ctx, ex, rel); err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	return errs
}

// key shapes a bucket key for one artifact. The workflow name is
// sanitized so a display name never produces an awkward key
func (a *Archiver) key(ex *runner.Execution, rel string) string {
	name := api.SanitizeName(ex.WorkflowName)
	key := name + "/" + ex.TaskID + "/" + filepath.ToSlash(rel)
	if a.prefix == "" {
		return key
	}
	prefix := a.prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}
