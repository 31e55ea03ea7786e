package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putRecorder struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
	meta   string
}

func newS3Server(t *testing.T, status int) (*httptest.Server, *putRecorder) {
	t.Helper()
	rec := &putRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.body = string(data)
		rec.meta = r.Header.Get("X-Amz-Meta-Project-Id")
		rec.mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestArchive(t *testing.T, endpoint string) *S3Archive {
	t.Helper()
	a, err := New(context.Background(), Config{
		Bucket:          "evidence",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	}, nil)
	require.NoError(t, err)
	return a
}

func TestArchive_Uploads(t *testing.T) {
	srv, rec := newS3Server(t, http.StatusOK)
	a := newTestArchive(t, srv.URL)

	loc, err := a.Archive(context.Background(), "proj1", "run1", "## File: main.go\npackage main\n\n")
	require.NoError(t, err)
	assert.Equal(t, "s3://evidence/codepacks/proj1/run1.md", loc)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/evidence/codepacks/proj1/run1.md", rec.path)
	assert.Contains(t, rec.body, "package main")
	assert.Equal(t, "proj1", rec.meta)
}

func TestArchive_UploadError(t *testing.T) {
	srv, _ := newS3Server(t, http.StatusForbidden)
	a := newTestArchive(t, srv.URL)

	_, err := a.Archive(context.Background(), "proj1", "run1", "x")
	assert.ErrorContains(t, err, "upload codepacks/proj1/run1.md")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestKey_Prefix(t *testing.T) {
	a, err := New(context.Background(), Config{Bucket: "b", Prefix: "/judge/packs/", AccessKeyID: "k", SecretAccessKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "judge/packs/p/r.md", a.Key("p", "r"))
}
