package pagestore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror is an optional durability backstop for the PAGES_DIR tree,
// generalized from the teacher's SaveToS3/GetFromS3 pair: raw bytes
// instead of JSON-marshaled metric structs, since a page mirror stores
// HTML and binary assets rather than telemetry documents.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

func NewS3Mirror(client *s3.Client, bucket string) *S3Mirror {
	return &S3Mirror{client: client, bucket: bucket}
}

func (m *S3Mirror) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := m.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("pagestore: s3 put %s: %w", key, err)
	}
	return nil
}

func (m *S3Mirror) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("pagestore: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("pagestore: read s3 object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
