package domain

import "time"

// Website is a content source. It is created once per distinct URL and is
// not updated by sync.
type Website struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	URL        string    `json:"url" db:"url"`
	ExternalID *string   `json:"external_id" db:"external_id"`
	DedupKey   *string   `json:"dedup_key" db:"dedup_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Webform is a form definition owned by exactly one Website. ExternalID is
// unique within the owning Website.
type Webform struct {
	ID          string    `json:"id" db:"id"`
	WebsiteID   string    `json:"website_id" db:"website_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	DedupKey    *string   `json:"dedup_key" db:"dedup_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// WebformSubmission is one completed form response. Submissions are
// append-only: a second delivery of the same record is a duplicate.
type WebformSubmission struct {
	ID            string         `json:"id" db:"id"`
	WebformID     string         `json:"webform_id" db:"webform_id"`
	PersonID      string         `json:"person_id" db:"person_id"`
	ExternalID    *string        `json:"external_id" db:"external_id"`
	DedupKey      *string        `json:"dedup_key" db:"dedup_key"`
	Payload       map[string]any `json:"payload" db:"payload"`
	SourceWebsite *string        `json:"source_website" db:"source_website"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}
