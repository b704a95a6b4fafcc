package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageKeys(t *testing.T) {
	assert.Equal(t, "post/12/cat.png", PostImageKey(12, "cat.png"))
	assert.Equal(t, "user/3/me.jpg", UserImageKey(3, "me.jpg"))
	assert.Equal(t, "post/1/passwd", PostImageKey(1, "../../etc/passwd"))
	assert.Equal(t, "user/1/evil.png", UserImageKey(1, `C:\tmp\evil.png`))
	assert.Equal(t, "post/1/upload", PostImageKey(1, ""))
}

func TestValidateImage(t *testing.T) {
	data := pngBytes(t)

	ct, err := ValidateImage(data, 1024*1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = ValidateImage(nil, 1024)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = ValidateImage(data, 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = ValidateImage([]byte("definitely not an image"), 1024)
	assert.ErrorIs(t, err, ErrInvalidImage)

	truncated := append([]byte{}, data[:12]...)
	_, err = ValidateImage(truncated, 1024)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	key := PostImageKey(5, "a.png")
	require.NoError(t, store.Put(ctx, key, "image/png", []byte("x")))

	got, err := os.ReadFile(filepath.Join(root, "post", "5", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, "/media/post/5/a.png", store.URL(key))
	assert.Empty(t, store.URL(""))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting a missing file is fine")

	assert.Error(t, store.Put(ctx, "../outside.png", "image/png", []byte("x")))
}

type fakeS3 struct {
	puts    map[string][]byte
	deletes []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(in.Body)
	f.puts[aws.ToString(in.Key)] = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{puts: map[string][]byte{}}
	store := newS3Store(fake, "media", "http://minio:9000/media/")
	ctx := context.Background()

	key := UserImageKey(9, "me.png")
	require.NoError(t, store.Put(ctx, key, "image/png", []byte("img")))
	assert.Equal(t, []byte("img"), fake.puts["user/9/me.png"])
	assert.Equal(t, "http://minio:9000/media/user/9/me.png", store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	assert.Equal(t, []string{"user/9/me.png"}, fake.deletes)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket: "media", Endpoint: "http://localhost:9000", AccessKey: "k", SecretKey: "s", UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/media/post/1/a.png", s.URL("post/1/a.png"))
}
