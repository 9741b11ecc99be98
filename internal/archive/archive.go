// Package archive copies published template versions to durable storage
// outside the database.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// Drivers.
const (
	DriverNone = "none"
	DriverFS   = "fs"
	DriverS3   = "s3"
)

// Archiver stores one published version. Implementations must be safe for
// concurrent use.
type Archiver interface {
	Put(ctx context.Context, v *core.TemplateVersion) error
	Driver() string
}

// Config selects and configures an archiver.
type Config struct {
	Driver string
	Dir    string
	S3     S3Config
}

// S3Config configures the S3-compatible archiver.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
}

// New builds the archiver named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Archiver, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverFS:
		return NewFS(cfg.Dir)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// Nop discards every version.
type Nop struct{}

func (Nop) Put(context.Context, *core.TemplateVersion) error { return nil }
func (Nop) Driver() string                                   { return DriverNone }

// Key returns the object key for a version: <org>/<template>/v<N>.json.
// IDs are escaped so each stays a single segment.
func Key(v *core.TemplateVersion) string {
	return path.Join(segment(v.OrganizationID), segment(v.TemplateID), fmt.Sprintf("v%d.json", v.VersionNumber))
}

func segment(id string) string {
	switch id {
	case "":
		return "_"
	case ".", "..":
		return strings.Repeat("%2E", len(id))
	}
	return url.PathEscape(id)
}

type document struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	TemplateID     string          `json:"template_id"`
	VersionNumber  int             `json:"version_number"`
	ChangeSummary  string          `json:"change_summary,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	Snapshot       json.RawMessage `json:"snapshot"`
}

// Encode renders the archived document. The snapshot bytes are embedded
// as stored.
func Encode(v *core.TemplateVersion) ([]byte, error) {
	if v == nil || len(v.Snapshot) == 0 {
		return nil, fmt.Errorf("version has no snapshot")
	}
	return json.MarshalIndent(document{
		ID:             v.ID,
		OrganizationID: v.OrganizationID,
		TemplateID:     v.TemplateID,
		VersionNumber:  v.VersionNumber,
		ChangeSummary:  v.ChangeSummary,
		CreatedBy:      v.CreatedBy,
		CreatedAt:      v.CreatedAt,
		Snapshot:       v.Snapshot,
	}, "", "  ")
}
