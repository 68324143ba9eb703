package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/salesflow/salesflow/pkg/report"
)

type putCall struct {
	key         string
	contentType string
	metadata    map[string]string
	body        []byte
}

type fakePutter struct {
	calls   []putCall
	failKey string
}

func (f *fakePutter) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(input.Key)
	if f.failKey != "" && key == f.failKey {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		key:         key,
		contentType: aws.ToString(input.ContentType),
		metadata:    input.Metadata,
		body:        body,
	})
	return &s3.PutObjectOutput{}, nil
}

func newTestPublisher(client objectPutter) *Publisher {
	return &Publisher{
		cfg:    DefaultConfig("reports-bucket"),
		client: client,
		log:    zerolog.Nop(),
	}
}

func TestKeyLayout(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"salesflow", "salesflow/20240101_120000/report.txt"},
		{"salesflow/", "salesflow/20240101_120000/report.txt"},
		{"", "20240101_120000/report.txt"},
		{"exports/sales", "exports/sales/20240101_120000/report.txt"},
	}
	for _, tt := range tests {
		p := &Publisher{cfg: Config{Prefix: tt.prefix}}
		if got := p.key("20240101_120000", "report.txt"); got != tt.want {
			t.Errorf("key with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"sales_report_x.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"sales_report_x.txt", "text/plain; charset=utf-8"},
		{"run_x.log", "text/plain; charset=utf-8"},
		{"chart_x.png", "image/png"},
		{"run_manifest_x.json", "application/json"},
		{"rejected_rows_x.jsonl", "application/x-ndjson"},
		{"sales_clean_x.parquet", "application/vnd.apache.parquet"},
		{"mystery.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.name); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// writeBundle lays out a minimal on-disk bundle plus the manifest
// entries describing it.
func writeBundle(t *testing.T, dir, runID string) (report.Paths, *report.Manifest) {
	t.Helper()
	paths := report.NewPaths(dir, runID)

	files := map[string]string{
		paths.Text():     "SALES REPORT\n",
		paths.Rejects():  `{"line":3,"reasons":["negative_price"]}` + "\n",
		paths.Manifest(): `{"version":"1.0"}`,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := &report.Manifest{
		Version: "1.0",
		RunID:   runID,
		Artifacts: []report.ArtifactInfo{
			{Name: filepath.Base(paths.Text()), Size: 13, Signature: "aaaa"},
			{Name: filepath.Base(paths.Rejects()), Size: 38, Signature: "bbbb", Rows: 1},
		},
	}
	return paths, m
}

func TestPublishRunUploadsManifestLast(t *testing.T) {
	const runID = "20240101_120000"
	paths, m := writeBundle(t, t.TempDir(), runID)

	fake := &fakePutter{}
	p := newTestPublisher(fake)

	keys, err := p.PublishRun(context.Background(), paths, m)
	if err != nil {
		t.Fatalf("PublishRun() error = %v", err)
	}

	if len(keys) != 3 {
		t.Fatalf("uploaded %d objects, want 3: %v", len(keys), keys)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("client saw %d puts, want 3", len(fake.calls))
	}

	last := fake.calls[len(fake.calls)-1]
	if want := "salesflow/" + runID + "/run_manifest_" + runID + ".json"; last.key != want {
		t.Errorf("last upload key = %q, want %q", last.key, want)
	}
	if last.contentType != "application/json" {
		t.Errorf("manifest content type = %q", last.contentType)
	}
	if last.metadata != nil {
		t.Errorf("manifest upload carried metadata %v, want none", last.metadata)
	}

	first := fake.calls[0]
	if want := "salesflow/" + runID + "/sales_report_" + runID + ".txt"; first.key != want {
		t.Errorf("first upload key = %q, want %q", first.key, want)
	}
	if first.contentType != "text/plain; charset=utf-8" {
		t.Errorf("text content type = %q", first.contentType)
	}
	if first.metadata["sha256"] != "aaaa" {
		t.Errorf("text metadata = %v, want sha256=aaaa", first.metadata)
	}
	if string(first.body) != "SALES REPORT\n" {
		t.Errorf("uploaded body = %q", first.body)
	}

	second := fake.calls[1]
	if !strings.HasSuffix(second.key, ".jsonl") {
		t.Errorf("second upload key = %q, want rejects file", second.key)
	}
	if second.contentType != "application/x-ndjson" {
		t.Errorf("rejects content type = %q", second.contentType)
	}
}

func TestPublishRunMissingArtifact(t *testing.T) {
	const runID = "20240101_120000"
	paths, m := writeBundle(t, t.TempDir(), runID)
	m.Artifacts = append(m.Artifacts, report.ArtifactInfo{Name: "sales_clean_" + runID + ".parquet"})

	fake := &fakePutter{}
	p := newTestPublisher(fake)

	keys, err := p.PublishRun(context.Background(), paths, m)
	if err == nil {
		t.Fatal("PublishRun() succeeded despite missing artifact")
	}
	if !strings.Contains(err.Error(), "sales_clean_") {
		t.Errorf("error %q does not name the missing artifact", err)
	}

	// The two real artifacts went up; the manifest must not have.
	if len(keys) != 2 {
		t.Errorf("uploaded %d objects before failing, want 2", len(keys))
	}
	for _, call := range fake.calls {
		if strings.Contains(call.key, "run_manifest_") {
			t.Error("manifest was uploaded despite an artifact failure")
		}
	}
}

func TestPublishRunUploadError(t *testing.T) {
	const runID = "20240101_120000"
	paths, m := writeBundle(t, t.TempDir(), runID)

	fake := &fakePutter{failKey: "salesflow/" + runID + "/rejected_rows_" + runID + ".jsonl"}
	p := newTestPublisher(fake)

	_, err := p.PublishRun(context.Background(), paths, m)
	if err == nil {
		t.Fatal("PublishRun() succeeded despite upload failure")
	}
	if !strings.Contains(err.Error(), "rejected_rows_") {
		t.Errorf("error %q does not name the failed artifact", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, zerolog.Nop())
	if err == nil {
		t.Fatal("New() accepted empty bucket")
	}
}
