// Package drupal reads webform definitions and completed submissions straight
// from a Drupal MySQL database.
package drupal

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ignite/contact-hub/internal/service/ingest"
)

var labelPattern = regexp.MustCompile(`label:\s['"]?([^'"\n]+)`)

// Client is a read-only ingest.Source over the Drupal schema.
type Client struct {
	db *sql.DB
}

var _ ingest.Source = (*Client)(nil)

// Open connects to the Drupal database described by a go-sql-driver DSN
// (user:pass@tcp(host:3306)/drupal).
func Open(dsn string) (*Client, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse drupal dsn: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open drupal connection: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Forms lists every webform with its configured label as title.
func (c *Client) Forms(ctx context.Context) ([]ingest.FormDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT webform_id FROM webform ORDER BY webform_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webforms: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan webform: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list webforms: %w", err)
	}

	forms := make([]ingest.FormDefinition, 0, len(ids))
	for _, id := range ids {
		title, err := c.title(ctx, id)
		if err != nil {
			return nil, err
		}
		forms = append(forms, ingest.FormDefinition{
			ExternalID:  id,
			Title:       title,
			Description: "Imported from Drupal: " + title,
		})
	}
	return forms, nil
}

// title reads the form label from its exported YAML config, falling back to
// the machine name.
func (c *Client) title(ctx context.Context, id string) (string, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM config WHERE name IN (?, ?) AND collection = 'webform.webform' LIMIT 1`,
		id, "webform.webform."+id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config for webform %s: %w", id, err)
	}
	return labelOf(string(data), id), nil
}

func labelOf(config, fallback string) string {
	m := labelPattern.FindStringSubmatch(config)
	if m == nil {
		return fallback
	}
	if label := strings.TrimSpace(m[1]); label != "" {
		return label
	}
	return fallback
}

// Submissions returns the completed submissions of one webform in sid order,
// each with its name/value data.
func (c *Client) Submissions(ctx context.Context, formID string) ([]ingest.SourceSubmission, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT sid, created FROM webform_submission WHERE webform_id = ? AND completed IS NOT NULL ORDER BY sid`,
		formID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for %s: %w", formID, err)
	}
	var subs []ingest.SourceSubmission
	var sids []int64
	for rows.Next() {
		var sid, created int64
		if err := rows.Scan(&sid, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		sids = append(sids, sid)
		subs = append(subs, ingest.SourceSubmission{
			ExternalID:  strconv.FormatInt(sid, 10),
			SubmittedAt: time.Unix(created, 0).UTC(),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions for %s: %w", formID, err)
	}

	for i, sid := range sids {
		data, err := c.submissionData(ctx, formID, sid)
		if err != nil {
			return nil, err
		}
		subs[i].Payload = data
	}
	return subs, nil
}

// submissionData folds the name/value rows of one submission into a map.
// Multi-value elements keep their last value.
func (c *Client) submissionData(ctx context.Context, formID string, sid int64) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, value FROM webform_submission_data WHERE sid = ? AND webform_id = ? ORDER BY name`,
		sid, formID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read data for submission %d: %w", sid, err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan submission data: %w", err)
		}
		data[name] = value.String
	}
	return data, rows.Err()
}
