// Package archive keeps the raw acquisition payload for each stored
// detection in object storage, so the full portal response stays auditable
// without bloating the snapshot documents.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

type Archiver interface {
	ArchiveOutcome(ctx context.Context, regNo string, detectedSem int, outcome *model.Outcome) (string, error)
}

type S3Archiver struct {
	client *s3.S3
	bucket string
}

func NewS3Archiver(cfg *config.Config) (*S3Archiver, error) {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.Storage.S3.AccessKey, cfg.Storage.S3.SecretKey, ""),
		Endpoint:         aws.String(cfg.Storage.S3.Endpoint),
		Region:           aws.String(cfg.Storage.S3.Region),
		DisableSSL:       aws.Bool(!cfg.Storage.S3.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}

	sess, err := session.NewSession(s3Config)
	if err != nil {
		return nil, err
	}

	return &S3Archiver{
		client: s3.New(sess),
		bucket: cfg.Storage.S3.Bucket,
	}, nil
}

// ArchiveOutcome writes the outcome as JSON under a per-student, per-semester
// key and returns the key.
func (a *S3Archiver) ArchiveOutcome(ctx context.Context, regNo string, detectedSem int, outcome *model.Outcome) (string, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return "", fmt.Errorf("failed to marshal outcome: %w", err)
	}

	key := fmt.Sprintf("results/%s/sem-%d-%d.json", regNo, detectedSem, time.Now().UTC().Unix())

	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(bytes.NewReader(data)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}

	return key, nil
}
