package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Config configures an S3 backup store
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// Validate checks the S3 store configuration
func (sc *S3Config) Validate() error {
	if sc.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if sc.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// S3Store implements Store for Amazon S3
type S3Store struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Store creates a new S3Store instance
func NewS3Store(config *S3Config) (*S3Store, error) {
	if config == nil {
		return nil, fmt.Errorf("s3 store configuration is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create AWS session
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewArchiveError("resolve", config.Bucket, "failed to create AWS session", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: config.Prefix,
	}, nil
}

// Fetch downloads the archive for the given date and domain into destDir
func (ss *S3Store) Fetch(ctx context.Context, date, domain, destDir string) (string, error) {
	for _, name := range CandidateNames(date, domain) {
		key := ss.prefix + name

		output, err := ss.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(ss.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isS3NotFound(err) {
				continue
			}
			return "", NewArchiveError("fetch", key, "failed to download archive from S3", err)
		}

		destPath := filepath.Join(destDir, name)
		if err := writeStream(destPath, output.Body); err != nil {
			output.Body.Close()
			return "", NewArchiveError("fetch", key, "failed to write archive to disk", err)
		}
		output.Body.Close()
		return destPath, nil
	}

	return "", NewArchiveError("resolve", BaseName(date, domain),
		fmt.Sprintf("no archive found in s3://%s/%s", ss.bucket, ss.prefix), nil)
}

// List returns all backup archives present in the bucket prefix
func (ss *S3Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	err := ss.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(ss.bucket),
		Prefix: aws.String(ss.prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), ss.prefix)
			if !strings.Contains(name, ".postgres-backup.") {
				continue
			}
			entries = append(entries, Entry{
				Name:         name,
				Size:         aws.Int64Value(obj.Size),
				LastModified: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, NewArchiveError("resolve", ss.bucket, "failed to list archives in S3", err)
	}

	return entries, nil
}

// isS3NotFound reports whether an S3 error means the object does not exist
func isS3NotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

// writeStream copies a remote object body into a local file
func writeStream(destPath string, body io.Reader) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return err
	}
	return out.Sync()
}
