// Package s3 implements the TaskStore interface on top of an S3-compatible
// object store via the minio-go client, giving task persistence that
// survives process restarts and is shared across server replicas.
package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Conn wraps a minio client bound to a single bucket, creating it on first
// use if it doesn't already exist.
type Conn struct {
	client *minio.Client
	bucket string
}

// Config holds the connection parameters for an S3-compatible endpoint.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

func NewConn(ctx context.Context, cfg Config) (*Conn, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &Conn{client: client, bucket: cfg.Bucket}, nil
}

func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Conn) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (c *Conn) Delete(ctx context.Context, key string) error {
	return c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
}

func (c *Conn) List(ctx context.Context, prefix string) <-chan minio.ObjectInfo {
	return c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
}
