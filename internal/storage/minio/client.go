// Package minio stores uploaded document bytes in a single MinIO bucket.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/zilogo/simba/internal/kberr"
)

// Client provides document object storage on top of MinIO.
type Client struct {
	config      *Config
	minioClient *minio.Client
	logger      *logrus.Logger
	mu          sync.RWMutex
	connected   bool
}

// NewClient creates a MinIO client. Call Connect before first use.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, kberr.NewConfig("invalid minio config: %v", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		config: config,
		logger: logger,
	}, nil
}

// Connect establishes the connection and ensures the document bucket exists.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	minioClient, err := minio.New(c.config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.config.AccessKey, c.config.SecretKey, ""),
		Secure: c.config.UseSSL,
		Region: c.config.Region,
	})
	if err != nil {
		return kberr.NewUpstream("minio", fmt.Errorf("create client: %w", err))
	}
	c.minioClient = minioClient

	exists, err := minioClient.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return kberr.NewUpstream("minio", fmt.Errorf("check bucket: %w", err))
	}
	if !exists {
		opts := minio.MakeBucketOptions{Region: c.config.Region}
		if err := minioClient.MakeBucket(ctx, c.config.Bucket, opts); err != nil {
			return kberr.NewUpstream("minio", fmt.Errorf("create bucket: %w", err))
		}
		c.logger.WithField("bucket", c.config.Bucket).Info("Created document bucket")
	}

	c.connected = true
	c.logger.WithFields(logrus.Fields{
		"endpoint": c.config.Endpoint,
		"bucket":   c.config.Bucket,
	}).Info("Connected to MinIO")
	return nil
}

// Close releases the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.minioClient = nil
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) client() (*minio.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.minioClient == nil {
		return nil, kberr.NewUpstream("minio", fmt.Errorf("not connected"))
	}
	return c.minioClient, nil
}

// HealthCheck verifies the MinIO connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if _, err := client.BucketExists(ctx, c.config.Bucket); err != nil {
		return kberr.NewUpstream("minio", err)
	}
	return nil
}

// Download fetches an object's bytes. A missing object is a NotFoundError.
func (c *Client) Download(ctx context.Context, objectKey string) ([]byte, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, c.config.Bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, kberr.NewUpstream("minio", fmt.Errorf("get object: %w", err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, kberr.NewNotFound("object", objectKey)
		}
		return nil, kberr.NewUpstream("minio", fmt.Errorf("read object: %w", err))
	}

	c.logger.WithFields(logrus.Fields{
		"object": objectKey,
		"size":   len(data),
	}).Debug("Downloaded object")
	return data, nil
}

// Upload stores an object.
func (c *Client) Upload(ctx context.Context, content []byte, objectKey, mimeType string) error {
	client, err := c.client()
	if err != nil {
		return err
	}

	opts := minio.PutObjectOptions{
		ContentType: mimeType,
		PartSize:    uint64(c.config.PartSize),
	}
	_, err = client.PutObject(ctx, c.config.Bucket, objectKey, bytes.NewReader(content), int64(len(content)), opts)
	if err != nil {
		return kberr.NewUpstream("minio", fmt.Errorf("put object: %w", err))
	}

	c.logger.WithFields(logrus.Fields{
		"object": objectKey,
		"size":   len(content),
		"type":   mimeType,
	}).Debug("Uploaded object")
	return nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	client, err := c.client()
	if err != nil {
		return err
	}

	if err := client.RemoveObject(ctx, c.config.Bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return kberr.NewUpstream("minio", fmt.Errorf("remove object: %w", err))
	}

	c.logger.WithField("object", objectKey).Debug("Deleted object")
	return nil
}

// PresignedURL generates a time-limited download URL for an object.
func (c *Client) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}

	presigned, err := client.PresignedGetObject(ctx, c.config.Bucket, objectKey, c.config.PresignExpiry, url.Values{})
	if err != nil {
		return "", kberr.NewUpstream("minio", fmt.Errorf("presign object: %w", err))
	}
	return presigned.String(), nil
}
