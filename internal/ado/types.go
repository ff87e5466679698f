// Package ado talks to the Azure DevOps REST API: board and column lookup,
// team area settings, WIQL queries and work item details.
package ado

import (
	"bytes"
	"encoding/json"
	"time"
)

// API constants
const (
	DefaultTimeout = 30 * time.Second

	boardsAPIVersion = "6.0-preview.1"
	witAPIVersion    = "6.0"
)

// ID is a board or column identifier. The service sends GUID strings; numeric
// ids are accepted too.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = ID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// Board is a team board resolved by name.
type Board struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Column is a board column resolved by name.
type Column struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// TeamFieldValues is the team's area configuration
// (GET .../_apis/work/teamsettings/teamfieldvalues).
type TeamFieldValues struct {
	Field        FieldRef         `json:"field"`
	DefaultValue string           `json:"defaultValue"`
	Values       []TeamFieldValue `json:"values"`
}

type FieldRef struct {
	ReferenceName string `json:"referenceName"`
	URL           string `json:"url,omitempty"`
}

// TeamFieldValue is one configured area path.
type TeamFieldValue struct {
	Value           string `json:"value"`
	IncludeChildren bool   `json:"includeChildren"`
}

// WorkItem is the subset of a work item needed for a notification.
type WorkItem struct {
	ID    int
	Title string
	URL   string
}

// listResponse is the common {"count": n, "value": [...]} envelope.
type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	QueryType string        `json:"queryType"`
	WorkItems []workItemRef `json:"workItems"`
}

type workItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type workItemResponse struct {
	ID     int            `json:"id"`
	Fields map[string]any `json:"fields"`
	Links  struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}
