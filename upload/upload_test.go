package upload

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(0, 1700000000000) }

	f, err := s.Save(context.Background(), "Flood.JPG", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000.jpg", f.Key)
	assert.Equal(t, "/uploads/1700000000000.jpg", f.URL)

	data, err := os.ReadFile(filepath.Join(dir, f.Key))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, s.Delete(context.Background(), f.Key))
	_, err = os.Stat(filepath.Join(dir, f.Key))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Delete(context.Background(), f.Key), "second delete must fail")
	assert.Error(t, s.Delete(context.Background(), "../etc/passwd"))
}

func TestStoresKeepOnlyImageExtensions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	for _, name := range []string{"evil.html", "page.svg", "noext", "script.js"} {
		_, err := s.Save(context.Background(), name, []byte("<script>"), "")
		assert.Error(t, err, name)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	f, err := s.Save(context.Background(), "photo.JPEG", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(f.Key))
}

func TestS3StoreSaveAndDelete(t *testing.T) {
	ts := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	defer ts.Close()

	s, err := NewS3Store("reports", "ap-south-1", ts.URL, &aws.Config{
		Credentials: credentials.NewStaticCredentials("key", "secret", ""),
		DisableSSL:  aws.Bool(true),
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.EnsureBucket(ctx), "existing bucket is not an error")

	f, err := s.Save(ctx, "photo.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Contains(t, f.URL, "/reports/"+f.Key)

	_, err = s.svc.HeadObject(&s3.HeadObjectInput{Bucket: aws.String("reports"), Key: aws.String(f.Key)})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, f.Key))
	_, err = s.svc.HeadObject(&s3.HeadObjectInput{Bucket: aws.String("reports"), Key: aws.String(f.Key)})
	assert.Error(t, err)
}
