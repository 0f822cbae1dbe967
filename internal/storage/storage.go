// Package storage archives import and sync reports as JSON documents,
// either on local disk or in S3.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/contact-hub/internal/config"
)

// ErrReportNotFound is returned by GetReport for unknown locations and for
// locations outside the archive.
var ErrReportNotFound = errors.New("report not found")

// Report categories.
const (
	CategoryImports = "imports"
	CategorySyncs   = "syncs"
)

// Storage is the report archive.
type Storage struct {
	config config.ReportsConfig
	aws    *AWSStorage
	now    func() time.Time
}

// New creates a report archive for cfg.Type: "s3" writes to the
// configured bucket, "none" discards reports, anything else writes under
// LocalPath.
func New(ctx context.Context, cfg config.ReportsConfig) (*Storage, error) {
	s := &Storage{config: cfg, now: time.Now}

	switch cfg.Type {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("reports: s3 type requires s3_bucket")
		}
		a, err := NewAWSStorage(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, err
		}
		s.aws = a
	case "none":
	default:
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}
	return s, nil
}

// key builds "<category>/<yyyy>/<mm>/<dd>/<stamp>-<name>-<uuid>.json".
func (s *Storage) key(category, name string) string {
	now := s.now().UTC()
	file := fmt.Sprintf("%s-%s-%s.json", now.Format("150405.000"), sanitize(name), uuid.NewString())
	return path.Join(category, now.Format("2006/01/02"), file)
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "report"
	}
	return name
}

// SaveReport archives data and returns its location (an s3:// URL or a
// file path), or "" when reports are disabled.
func (s *Storage) SaveReport(ctx context.Context, category, name string, data interface{}) (string, error) {
	key := s.key(category, name)
	switch {
	case s.config.Type == "none":
		return "", nil
	case s.aws != nil:
		full := s.config.S3Prefix + key
		if err := s.aws.SaveToS3(ctx, full, data); err != nil {
			return "", err
		}
		return fmt.Sprintf("s3://%s/%s", s.config.S3Bucket, full), nil
	}
	return s.saveToFile(key, data)
}

// GetReport loads an archived report by the location SaveReport returned.
func (s *Storage) GetReport(ctx context.Context, location string, target interface{}) error {
	switch {
	case s.config.Type == "none":
		return ErrReportNotFound
	case s.aws != nil:
		prefix := fmt.Sprintf("s3://%s/%s", s.config.S3Bucket, s.config.S3Prefix)
		if !strings.HasPrefix(location, prefix) || strings.Contains(location, "..") {
			return ErrReportNotFound
		}
		return s.aws.GetFromS3(ctx, strings.TrimPrefix(location, fmt.Sprintf("s3://%s/", s.config.S3Bucket)), target)
	}

	rel, err := filepath.Rel(s.config.LocalPath, location)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ErrReportNotFound
	}
	file, err := os.Open(filepath.Join(s.config.LocalPath, rel))
	if errors.Is(err, os.ErrNotExist) {
		return ErrReportNotFound
	}
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(target)
}

func (s *Storage) saveToFile(key string, data interface{}) (string, error) {
	p := filepath.Join(s.config.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}
	file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return "", err
	}
	return p, nil
}
