package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/salesflow/salesflow/pkg/pipeline"
	"github.com/salesflow/salesflow/pkg/util"
)

// Manifest describes everything a run produced. It is written after
// all other artifacts so its hashes cover their final bytes.
type Manifest struct {
	Version   string         `json:"version"`
	RunID     string         `json:"run_id"`
	Source    SourceInfo     `json:"source"`
	Stats     RunStats       `json:"stats"`
	Artifacts []ArtifactInfo `json:"artifacts"`
	Generated GeneratedInfo  `json:"generated"`
}

// SourceInfo identifies the input file a run consumed.
type SourceInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size_bytes"`
	Signature string `json:"sha256"`
}

// RunStats carries the headline figures. TotalRevenue is the exact
// decimal string, not a float.
type RunStats struct {
	RowsTotal     int     `json:"rows_total"`
	RowsAccepted  int     `json:"rows_accepted"`
	RowsRejected  int     `json:"rows_rejected"`
	RejectionRate float64 `json:"rejection_rate"`
	TotalRevenue  string  `json:"total_revenue"`
}

// ArtifactInfo describes one produced file.
type ArtifactInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size_bytes"`
	Signature string `json:"sha256"`
	Rows      int64  `json:"row_count,omitempty"`
}

// GeneratedInfo records when and by what the manifest was written.
type GeneratedInfo struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Tool      string `json:"tool"`
	Version   string `json:"tool_version"`
}

// DescribeSource stats and hashes the input file.
func DescribeSource(path string) (SourceInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("stat source: %w", err)
	}
	sig, err := util.FileSHA256(path)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("hashing source: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return SourceInfo{
		Name:      filepath.Base(path),
		Path:      abs,
		Size:      stat.Size(),
		Signature: sig,
	}, nil
}

// describeArtifact stats and hashes a produced file.
func describeArtifact(path string, rows int64) (ArtifactInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("stat artifact: %w", err)
	}
	sig, err := util.FileSHA256(path)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("hashing artifact: %w", err)
	}
	return ArtifactInfo{
		Name:      filepath.Base(path),
		Size:      stat.Size(),
		Signature: sig,
		Rows:      rows,
	}, nil
}

func buildManifest(run *pipeline.Run, source SourceInfo, artifacts []ArtifactInfo, toolVersion string) *Manifest {
	return &Manifest{
		Version: "1.0",
		RunID:   run.ID,
		Source:  source,
		Stats: RunStats{
			RowsTotal:     run.Quality.TotalRows,
			RowsAccepted:  run.Quality.Accepted,
			RowsRejected:  run.Quality.Rejected,
			RejectionRate: run.Quality.RejectionRate,
			TotalRevenue:  run.Metrics.TotalRevenue.String(),
		},
		Artifacts: artifacts,
		Generated: GeneratedInfo{
			ID:        uuid.New().String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Tool:      "salesflow",
			Version:   toolVersion,
		},
	}
}

// writeManifest serializes the manifest with stable indentation.
func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest back from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}
