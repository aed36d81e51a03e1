// Package s3infra seeds runtime config keys from a JSON object in S3.
package s3infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/infrastructure/awscfg"
)

// maxSeedSize caps how much of the seed object is read.
const maxSeedSize = 1 << 20

// GetObjectAPI is the subset of the S3 client used by the seeder.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// KeyWriter is satisfied by keys.Manager.
type KeyWriter interface {
	List(ctx context.Context) ([]domain.ConfigKey, error)
	Set(ctx context.Context, name, value string) (*domain.ConfigKey, error)
}

// Seeder creates config keys listed in a {"NAME": value} object that do not
// exist yet. Existing keys are never overwritten.
type Seeder struct {
	client GetObjectAPI
	bucket string
	object string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func NewSeeder(client GetObjectAPI, bucket, object string) *Seeder {
	return &Seeder{client: client, bucket: bucket, object: object}
}

// Seed returns the names of the keys it created.
func (s *Seeder) Seed(ctx context.Context, keys KeyWriter) ([]string, error) {
	values, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, k := range existing {
		have[k.Name] = true
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var created []string
	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := keys.Set(ctx, name, values[name]); err != nil {
			return created, fmt.Errorf("seed key %s: %w", name, err)
		}
		created = append(created, name)
	}
	slog.Info("config keys seeded", "bucket", s.bucket, "object", s.object, "created", len(created))
	return created, nil
}

func (s *Seeder) fetch(ctx context.Context) (map[string]string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.object),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, maxSeedSize))
	if err != nil {
		return nil, fmt.Errorf("read seed object: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode seed object: %w", err)
	}
	values := make(map[string]string, len(raw))
	for name, v := range raw {
		values[name] = seedValue(v)
	}
	return values, nil
}

// seedValue stores strings unquoted and every other JSON value verbatim, so
// numbers, booleans and string arrays parse back through the key manager.
func seedValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}
