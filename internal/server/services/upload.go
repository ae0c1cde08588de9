package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	sc "github.com/dmitrijs2005/rtcauth/internal/server/config"
)

const maxFileNameBytes = 255

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// SessionResolver maps a session token to its user id.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

// UploadURL is a presigned PUT target in object storage.
type UploadURL struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// UploadService hands logged-in users presigned URLs for uploading files
// (avatars, recordings) straight to an S3-compatible bucket.
type UploadService struct {
	sessions SessionResolver
	config   *sc.Config
	clock    clock.Clock
	log      logging.Logger
}

func NewUploadService(sessions SessionResolver, cfg *sc.Config, clk clock.Clock, log logging.Logger) *UploadService {
	return &UploadService{
		sessions: sessions,
		config:   cfg,
		clock:    clk,
		log:      log.With("module", "upload"),
	}
}

// StorageKey lays out uploads as users/<user>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func StorageKey(userID, fileName string, at time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("users/%s/%04d/%02d/%02d/%s%s", userID, at.Year(), int(at.Month()), at.Day(), uuid.NewString(), ext)
}

func (s *UploadService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// CreateUploadURL returns a presigned PUT URL for fileName owned by the
// session's user.
func (s *UploadService) CreateUploadURL(ctx context.Context, sessionToken, fileName string) (*UploadURL, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || len(fileName) > maxFileNameBytes || strings.ContainsAny(fileName, `/\`) {
		return nil, fmt.Errorf("%w: file name must be a plain name of 1 to %d bytes", common.ErrInvalidRequest, maxFileNameBytes)
	}

	userID, err := s.sessions.ResolveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if s.config.S3Bucket == "" {
		return nil, fmt.Errorf("%w: uploads are not configured", common.ErrUpstream)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 config: %w", common.ErrUpstream, err)
	}

	now := s.clock.Now()
	bucket := s.config.S3Bucket
	key := StorageKey(userID, fileName, now)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.UploadURLTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: presign: %w", common.ErrUpstream, err)
	}

	s.log.Info(ctx, "upload url issued", "user_id", userID, "key", key)

	return &UploadURL{Key: key, URL: req.URL, ExpiresAt: now.Add(s.config.UploadURLTTL)}, nil
}
