package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/dmitrijs2005/chirp/internal/logging"
	sc "github.com/dmitrijs2005/chirp/internal/server/config"
	"github.com/dmitrijs2005/chirp/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

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

// AvatarUpload tells the client where to PUT the image and the URL the
// account's avatar will be served from afterwards.
type AvatarUpload struct {
	UploadURL string
	AvatarURL string
	ExpiresAt time.Time
}

type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
}

func NewAvatarService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, log logging.Logger) *AvatarService {
	return &AvatarService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		log:         log,
	}
}

func avatarStorageKey(accountID string) string {
	return fmt.Sprintf("%s/%s", accountID, uuid.New())
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// RequestUpload presigns a PUT for a fresh object key and points the
// account's avatar_url at it.
func (s *AvatarService) RequestUpload(ctx context.Context, accountID string) (*AvatarUpload, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		s.log.Error(ctx, "object storage client", "error", err)
		return nil, common.ErrStoreUnavailable
	}

	bucket := s.config.S3Bucket
	key := avatarStorageKey(accountID)
	validity := s.config.AvatarUploadValidity

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		s.log.Error(ctx, "presign avatar upload", "error", err)
		return nil, common.ErrStoreUnavailable
	}

	avatarURL := strings.TrimSuffix(s.config.S3PublicBaseURL, "/") + "/" + key

	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.repomanager.Accounts(s.db).UpdateAvatar(sctx, accountID, avatarURL); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		s.log.Error(ctx, "store call failed", "op", "update avatar", "error", err)
		return nil, common.ErrStoreUnavailable
	}

	return &AvatarUpload{
		UploadURL: req.URL,
		AvatarURL: avatarURL,
		ExpiresAt: time.Now().Add(validity).UTC(),
	}, nil
}
