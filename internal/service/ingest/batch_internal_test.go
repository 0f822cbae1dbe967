package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityGroups(t *testing.T) {
	records := []Fields{
		{"email": "a@x.com"},
		{"email": "b@x.com", "external_id": "X"},
		{"email": "c@x.com", "dedup_key": "K"},
		{"email": "a@x.com", "dedup_key": "K"},
		{"email": "d@x.com", "external_id": "X"},
		{"first_name": "none"},
		{"email": "e@x.com"},
	}
	groups := identityGroups(records, personIdentityFields)
	assert.Equal(t, []int{0, 1, 0, 0, 1, 2, 3}, groups)
}

func TestIdentityGroupsKeepsColumnsApart(t *testing.T) {
	records := []Fields{
		{"email": "1"},
		{"external_id": "1"},
	}
	assert.Equal(t, []int{0, 1}, identityGroups(records, personIdentityFields))
}
