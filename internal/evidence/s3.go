package evidence

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Mirror copies evidence files to s3://<bucket>/<prefix>/<key>.
type S3Mirror struct {
	bucket   string
	prefix   string
	uploader uploader
}

// NewS3Mirror builds a mirror using the default AWS credential chain
// (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID, ...).
func NewS3Mirror(ctx context.Context, bucket, prefix string) (*S3Mirror, error) {
	if bucket == "" {
		return nil, eris.New("evidence: s3 bucket required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: load aws config")
	}
	return &S3Mirror{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}, nil
}

// ObjectKey returns the object key a root-relative evidence key is stored under.
func (m *S3Mirror) ObjectKey(key string) string {
	return path.Join(m.prefix, key)
}

func (m *S3Mirror) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(m.bucket),
		Key:                  aws.String(m.ObjectKey(key)),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	return eris.Wrapf(err, "evidence: upload %s", key)
}
