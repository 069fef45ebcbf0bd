package minio

import (
	"context"
	"errors"
	"guestbook-backend/internal/repo"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
)

type Photo struct {
	client *minio.Client
	bucket string
}

func NewPhoto(ctx context.Context, client *minio.Client, bucket string) (repo.PhotoStorage, error) {
	// Создаем бакет для фото, предварительно проверив, что его нет
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: "eu-central-1",
		})
		if err != nil {
			return nil, err
		}
	}
	return &Photo{
		client: client,
		bucket: bucket,
	}, nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (p *Photo) PutPhoto(ctx context.Context, name string, r io.Reader, size int64) error {
	// тип определяем по первым байтам, а потом отдаем в minio весь поток целиком
	mime, err := mimetype.DetectReader(io.LimitReader(r, 3072))
	if err != nil {
		return err
	}
	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return err
		}
	} else {
		return errors.New("photo reader must be seekable")
	}

	_, err = p.client.PutObject(ctx, p.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: mime.String(),
	})
	return err
}

func (p *Photo) FetchPhoto(ctx context.Context, name string, dst string) error {
	err := p.client.FGetObject(ctx, p.bucket, name, dst, minio.GetObjectOptions{
		Checksum: true,
	})
	if isNotFound(err) {
		return repo.ErrPhotoNotFound
	}
	return err
}

func (p *Photo) DeletePhoto(ctx context.Context, name string) error {
	err := p.client.RemoveObject(ctx, p.bucket, name, minio.RemoveObjectOptions{})
	if isNotFound(err) {
		return nil
	}
	return err
}
