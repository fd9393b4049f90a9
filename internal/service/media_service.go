package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/IlyaVishnyakMuz/apgram-backend/configs"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

// MediaService stores post images in Cloudflare R2 and hands out the public
// URLs the delivery gateway sends from. Objects are released after a
// successful delivery or when the referencing post lets go of them.
type MediaService interface {
	Upload(ctx context.Context, file []byte) (string, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

type r2MediaService struct {
	config cfg.Config
}

func NewMediaService(config cfg.Config) MediaService {
	return &r2MediaService{config: config}
}

func (r *r2MediaService) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

func (r *r2MediaService) Upload(ctx context.Context, file []byte) (string, error) {
	allowedTypes := map[string]struct{}{
		"jpeg": {}, "jpg": {}, "png": {},
	}

	fileType, err := filetype.Match(file)
	if err != nil || fileType == types.Unknown {
		return "", ErrUnsupportedMedia
	}
	if _, ok := allowedTypes[fileType.Extension]; !ok {
		return "", ErrUnsupportedMedia
	}

	key, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	client, err := r.client(ctx)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(fileType.MIME.Value),
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return key, nil
}

func (r *r2MediaService) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(r.config.R2.PublicBase, "/"), key)
}

func (r *r2MediaService) Delete(ctx context.Context, key string) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	}
	if _, err := client.DeleteObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
