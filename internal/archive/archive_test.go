package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

func testVersion() *core.TemplateVersion {
	return &core.TemplateVersion{
		ID:             "ver-1",
		OrganizationID: "org-1",
		TemplateID:     "tpl-1",
		VersionNumber:  3,
		Snapshot:       json.RawMessage(`{"template":{"name":"Sales QA"},"groups":[],"criteria":[]}`),
		CreatedBy:      "u-1",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	if got := Key(testVersion()); got != "org-1/tpl-1/v3.json" {
		t.Errorf("Key() = %q", got)
	}

	tests := []struct {
		org, tpl string
		want     string
	}{
		{"..", "tpl-1", "%2E%2E/tpl-1/v3.json"},
		{"../../etc", "tpl-1", "..%2F..%2Fetc/tpl-1/v3.json"},
		{`a\b`, ".", "a%5Cb/%2E/v3.json"},
		{"", "tpl-1", "_/tpl-1/v3.json"},
	}
	for _, tt := range tests {
		v := testVersion()
		v.OrganizationID, v.TemplateID = tt.org, tt.tpl
		if got := Key(v); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.org, tt.tpl, got, tt.want)
		}
	}
}

func TestFS_PutStaysInRoot(t *testing.T) {
	root := t.TempDir()
	a, err := NewFS(filepath.Join(root, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	v := testVersion()
	v.OrganizationID = "../escaped"
	if err := a.Put(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "escaped")); !os.IsNotExist(err) {
		t.Fatalf("write escaped the archive root: %v", err)
	}
	if !strings.HasPrefix(a.Path(v), filepath.Join(root, "archive")+string(filepath.Separator)) {
		t.Errorf("Path() = %q", a.Path(v))
	}
}

func TestEncode_EmbedsSnapshot(t *testing.T) {
	data, err := Encode(testVersion())
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		VersionNumber int             `json:"version_number"`
		Snapshot      json.RawMessage `json:"snapshot"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.VersionNumber != 3 || !strings.Contains(string(doc.Snapshot), `"Sales QA"`) {
		t.Errorf("doc = %+v", doc)
	}

	if _, err := Encode(&core.TemplateVersion{}); err == nil {
		t.Error("expected error for empty snapshot")
	}
}

func TestNew_Drivers(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, Config{})
	if err != nil || a.Driver() != DriverNone {
		t.Fatalf("default = %v, %v", a, err)
	}
	if err := a.Put(ctx, testVersion()); err != nil {
		t.Fatal(err)
	}

	if _, err := New(ctx, Config{Driver: DriverFS}); err == nil {
		t.Error("fs without dir should fail")
	}
	if _, err := New(ctx, Config{Driver: DriverS3}); err == nil {
		t.Error("s3 without bucket should fail")
	}
	if _, err := New(ctx, Config{Driver: "gcs"}); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestFS_Put(t *testing.T) {
	a, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v := testVersion()
	if err := a.Put(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	// Writing the same version again is idempotent.
	if err := a.Put(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(a.Path(v))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"template_id": "tpl-1"`) {
		t.Errorf("unexpected file content: %s", data)
	}
}

func TestFS_PutCancelled(t *testing.T) {
	a, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Put(ctx, testVersion()); err == nil {
		t.Error("expected context error")
	}
}

type fakeBucket struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	status   int
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	status := f.status
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func newTestS3(t *testing.T, bucket *fakeBucket) *S3 {
	t.Helper()
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	a, err := NewS3(context.Background(), S3Config{
		Bucket:    "archive",
		Endpoint:  srv.URL,
		Prefix:    "scorecard",
		PathStyle: true,
	}, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestS3_Put(t *testing.T) {
	bucket := &fakeBucket{}
	a := newTestS3(t, bucket)

	if err := a.Put(context.Background(), testVersion()); err != nil {
		t.Fatal(err)
	}
	if len(bucket.requests) != 1 {
		t.Fatalf("requests = %d", len(bucket.requests))
	}
	req := bucket.requests[0]
	if req.Method != http.MethodPut {
		t.Errorf("method = %s", req.Method)
	}
	if req.URL.Path != "/archive/scorecard/org-1/tpl-1/v3.json" {
		t.Errorf("path = %s", req.URL.Path)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type = %s", req.Header.Get("Content-Type"))
	}
	if req.Header.Get("X-Amz-Meta-Version-Number") != "3" {
		t.Errorf("metadata = %v", req.Header)
	}
	if !strings.Contains(bucket.bodies[0], `"version_number": 3`) {
		t.Errorf("body = %s", bucket.bodies[0])
	}
}

func TestS3_PutError(t *testing.T) {
	a := newTestS3(t, &fakeBucket{status: http.StatusForbidden})
	if err := a.Put(context.Background(), testVersion()); err == nil {
		t.Fatal("expected error")
	}
}
