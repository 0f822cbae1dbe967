package domain

import "time"

// Person is an identity-bearing contact. Email is globally unique; when
// ExternalID is set it is unique too.
type Person struct {
	ID            string    `json:"id" db:"id"`
	FirstName     *string   `json:"first_name" db:"first_name"`
	LastName      *string   `json:"last_name" db:"last_name"`
	Email         string    `json:"email" db:"email"`
	SourceWebsite *string   `json:"source_website" db:"source_website"`
	Country       *string   `json:"country" db:"country"`
	Organisation  *string   `json:"organisation" db:"organisation"`
	Domain        *string   `json:"domain" db:"domain"`
	Website       *string   `json:"website" db:"website"`
	Webform       *string   `json:"webform" db:"webform"`
	Tags          *string   `json:"tags" db:"tags"`   // raw CSV text
	Roles         *string   `json:"roles" db:"roles"` // raw CSV text
	PPG           *string   `json:"ppg" db:"ppg"`
	Type          *string   `json:"type" db:"type"`
	ExternalID    *string   `json:"external_id" db:"external_id"`
	DedupKey      *string   `json:"dedup_key" db:"dedup_key"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Person column names accepted by imports, in storage order. Email is the
// only required one.
const (
	FieldEmail         = "email"
	FieldFirstName     = "first_name"
	FieldLastName      = "last_name"
	FieldSourceWebsite = "source_website"
	FieldCountry       = "country"
	FieldOrganisation  = "organisation"
	FieldDomain        = "domain"
	FieldWebsite       = "website"
	FieldWebform       = "webform"
	FieldTags          = "tags"
	FieldRoles         = "roles"
	FieldPPG           = "ppg"
	FieldType          = "type"
	FieldExternalID    = "external_id"
	FieldDedupKey      = "dedup_key"
)

// PersonOptionalFields lists every nullable Person column settable by
// imports and API writes.
var PersonOptionalFields = []string{
	FieldFirstName, FieldLastName, FieldSourceWebsite, FieldExternalID,
	FieldCountry, FieldOrganisation, FieldDomain, FieldTags, FieldRoles,
	FieldPPG, FieldType, FieldWebsite, FieldWebform, FieldDedupKey,
}

// OptionalField returns a pointer to the named nullable column, or nil if
// the name is not a Person column.
func (p *Person) OptionalField(name string) **string {
	switch name {
	case FieldFirstName:
		return &p.FirstName
	case FieldLastName:
		return &p.LastName
	case FieldSourceWebsite:
		return &p.SourceWebsite
	case FieldCountry:
		return &p.Country
	case FieldOrganisation:
		return &p.Organisation
	case FieldDomain:
		return &p.Domain
	case FieldWebsite:
		return &p.Website
	case FieldWebform:
		return &p.Webform
	case FieldTags:
		return &p.Tags
	case FieldRoles:
		return &p.Roles
	case FieldPPG:
		return &p.PPG
	case FieldType:
		return &p.Type
	case FieldExternalID:
		return &p.ExternalID
	case FieldDedupKey:
		return &p.DedupKey
	}
	return nil
}
