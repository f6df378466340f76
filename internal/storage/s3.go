package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// S3Service keeps profile images in a single Amazon S3 (or compatible) bucket.
type S3Service struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	urlTTL    time.Duration
}

func NewS3Service(client *s3.Client, bucket string, urlTTL time.Duration) *S3Service {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &S3Service{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  manager.NewUploader(client),
		bucket:    bucket,
		urlTTL:    urlTTL,
	}
}

func (s *S3Service) UploadFile(ctx context.Context, key string, body io.Reader, contentType string) error {
	if s.bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    types.ObjectCannedACLPrivate,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// UploadDirectory uploads every regular file under localPath accepted by
// opts.Filter, keyed by KeyPrefix plus the slash-separated relative path.
func (s *S3Service) UploadDirectory(ctx context.Context, localPath string, opts UploadOptions) ([]UploadedObject, error) {
	root := filepath.Clean(localPath)
	if fi, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("local path must be a directory")
	}

	var files []UploadedObject
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if opts.Filter != nil && !opts.Filter(rel) {
			return nil
		}
		files = append(files, UploadedObject{
			Key:  objectKey(opts.KeyPrefix, rel),
			Rel:  rel,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var totalSize int64
	for _, file := range files {
		totalSize += file.Size
	}
	progress := newProgressReporter(totalSize, opts.ProgressCallback)

	for _, file := range files {
		path := filepath.Join(root, filepath.FromSlash(file.Rel))
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, fmt.Errorf("detect content type %s: %w", path, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open file %s: %w", path, err)
		}
		var reader io.Reader = f
		if progress != nil {
			reader = io.TeeReader(f, progress)
		}
		err = s.UploadFile(ctx, file.Key, reader, mt.String())
		closeErr := f.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close file %s: %w", path, closeErr)
		}
	}

	if progress != nil {
		progress.flush()
	}
	return files, nil
}

// ObjectURL presigns a GET for key, valid for the configured TTL.
func (s *S3Service) ObjectURL(ctx context.Context, key string) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("storage bucket is required")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Service) DeleteObject(ctx context.Context, key string) error {
	if s.bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

var _ Service = (*S3Service)(nil)

func objectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

type progressReporter struct {
	total    int64
	done     int64
	cb       func(done, total int64)
	mu       sync.Mutex
	lastFire time.Time
}

func newProgressReporter(total int64, cb func(done, total int64)) *progressReporter {
	if cb == nil {
		return nil
	}
	return &progressReporter{total: total, cb: cb}
}

func (p *progressReporter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += int64(len(b))
	now := time.Now()
	if now.Sub(p.lastFire) >= 200*time.Millisecond || p.done == p.total {
		p.lastFire = now
		p.cb(p.done, p.total)
	}
	return len(b), nil
}

func (p *progressReporter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb(p.done, p.total)
}
