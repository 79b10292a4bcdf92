package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	objects map[string]string
	err     error
	calls   []*s3.GetObjectInput
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestDownload(t *testing.T) {
	t.Parallel()

	api := &fakeGetter{objects: map[string]string{"resumes/1.txt": "Python developer"}}
	client := newClient(api, Config{Bucket: "uploads"}, nil)

	data, err := client.Download(context.Background(), " resumes/1.txt ")
	require.NoError(t, err)
	assert.Equal(t, "Python developer", string(data))
	require.Len(t, api.calls, 1)
	assert.Equal(t, "uploads", aws.ToString(api.calls[0].Bucket))
	assert.Equal(t, "resumes/1.txt", aws.ToString(api.calls[0].Key))
}

func TestDownloadErrors(t *testing.T) {
	t.Parallel()

	api := &fakeGetter{objects: map[string]string{"big.pdf": strings.Repeat("x", 64)}}

	_, err := newClient(api, Config{Bucket: "uploads"}, nil).Download(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = newClient(api, Config{Bucket: "uploads", MaxObjectBytes: 10}, nil).Download(context.Background(), "big.pdf")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = newClient(api, Config{Bucket: "uploads"}, nil).Download(context.Background(), "  ")
	assert.Error(t, err)

	boom := errors.New("connection reset")
	_, err = newClient(&fakeGetter{err: boom}, Config{Bucket: "uploads"}, nil).Download(context.Background(), "a.pdf")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "bucket only", cfg: Config{Bucket: "uploads"}},
		{name: "static keys", cfg: Config{Bucket: "uploads", AccessKey: "a", SecretKey: "b"}},
		{name: "no bucket", cfg: Config{}, wantErr: true},
		{name: "half keys", cfg: Config{Bucket: "uploads", AccessKey: "a"}, wantErr: true},
		{name: "negative limit", cfg: Config{Bucket: "uploads", MaxObjectBytes: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
