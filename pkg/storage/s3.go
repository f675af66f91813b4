package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of *s3.Client used by Object.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Object is a Blob stored in an S3-compatible bucket.
type Object struct {
	client S3Client
	bucket string
	key    string
}

func NewObject(client S3Client, bucket, key string) *Object {
	return &Object{client: client, bucket: bucket, key: key}
}

func (o *Object) String() string { return "s3://" + o.bucket + "/" + o.key }

func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, o.wrap("get", err)
	}
	return out.Body, nil
}

// Create buffers the content in memory and uploads it with one PutObject
// on Close. The upload uses the context passed to Create.
func (o *Object) Create(ctx context.Context) (io.WriteCloser, error) {
	return &upload{ctx: ctx, obj: o}, nil
}

func (o *Object) Exists(ctx context.Context) (bool, error) {
	_, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, o.wrap("head", err)
}

func (o *Object) Remove(ctx context.Context) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return o.wrap("delete", err)
	}
	return nil
}

func (o *Object) wrap(op string, err error) error {
	if notFound(err) {
		err = fs.ErrNotExist
	}
	return fmt.Errorf("storage: %s %s: %w", op, o, err)
}

type upload struct {
	ctx    context.Context
	obj    *Object
	buf    bytes.Buffer
	closed bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.closed {
		return 0, errors.New("storage: write after close")
	}
	return u.buf.Write(p)
}

func (u *upload) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	_, err := u.obj.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.obj.bucket),
		Key:           aws.String(u.obj.key),
		Body:          bytes.NewReader(u.buf.Bytes()),
		ContentLength: aws.Int64(int64(u.buf.Len())),
	})
	if err != nil {
		return u.obj.wrap("put", err)
	}
	return nil
}

// notFound reports whether err is S3's answer for a missing key. GetObject
// says NoSuchKey; HeadObject has no body and says NotFound.
func notFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NotFound"
}

var _ Blob = (*Object)(nil)
