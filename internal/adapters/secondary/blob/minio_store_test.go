package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *mockObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, body, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockObjectStore) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func TestNewMinioStore_Bucket(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing bucket", func(t *testing.T) {
		client := new(mockObjectStore)
		client.On("BucketExists", ctx, "attachments").Return(false, nil)
		client.On("MakeBucket", ctx, "attachments", minio.MakeBucketOptions{}).Return(nil)

		_, err := newMinioStore(ctx, client, "attachments", nil)
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("reuses existing bucket", func(t *testing.T) {
		client := new(mockObjectStore)
		client.On("BucketExists", ctx, "attachments").Return(true, nil)

		_, err := newMinioStore(ctx, client, "attachments", nil)
		require.NoError(t, err)
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("endpoint failure", func(t *testing.T) {
		client := new(mockObjectStore)
		client.On("BucketExists", ctx, "attachments").Return(false, errors.New("dial tcp: refused"))

		_, err := newMinioStore(ctx, client, "attachments", nil)
		assert.ErrorContains(t, err, "check bucket")
	})
}

func TestMinioStore_Store(t *testing.T) {
	ctx := context.Background()
	client := new(mockObjectStore)
	client.On("BucketExists", ctx, "attachments").Return(true, nil)
	client.On("PutObject", ctx, "attachments", "tickets/12/1700000000000-shot.png", []byte("img"), int64(3),
		minio.PutObjectOptions{ContentType: "image/png"}).
		Return(minio.UploadInfo{Key: "tickets/12/1700000000000-shot.png"}, nil)

	store, err := newMinioStore(ctx, client, "attachments", nil)
	require.NoError(t, err)

	key, err := store.Store(ctx, []byte("img"), "1700000000000-shot.png", 12)
	require.NoError(t, err)
	assert.Equal(t, "tickets/12/1700000000000-shot.png", key)
	client.AssertExpectations(t)
}

func TestMinioStore_StoreError(t *testing.T) {
	ctx := context.Background()
	client := new(mockObjectStore)
	client.On("BucketExists", ctx, "attachments").Return(true, nil)
	client.On("PutObject", ctx, "attachments", "tickets/3/blob", []byte("x"), int64(1),
		minio.PutObjectOptions{ContentType: "application/octet-stream"}).
		Return(minio.UploadInfo{}, errors.New("access denied"))

	store, err := newMinioStore(ctx, client, "attachments", nil)
	require.NoError(t, err)

	_, err = store.Store(ctx, []byte("x"), "blob", 3)
	assert.ErrorContains(t, err, "access denied")
}
