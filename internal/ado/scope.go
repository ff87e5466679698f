package ado

import (
	"context"
	"fmt"
	"strings"
)

// BuildAreaPredicate turns the team's area settings into a WIQL fragment:
//
//	([System.AreaPath] UNDER 'A' OR [System.AreaPath] = 'B')
//
// With no usable entries it falls back to the whole project, so the result is
// never empty.
func BuildAreaPredicate(project string, values []TeamFieldValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v.Value == "" {
			continue
		}
		if v.IncludeChildren {
			parts = append(parts, "[System.AreaPath] UNDER "+wiqlString(v.Value))
		} else {
			parts = append(parts, "[System.AreaPath] = "+wiqlString(v.Value))
		}
	}
	if len(parts) == 0 {
		return projectPredicate(project)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// TeamAreaPredicate fetches the team field values and builds the area predicate.
func (c *Client) TeamAreaPredicate(ctx context.Context, project, team string) (string, error) {
	var tfv TeamFieldValues
	path := scope(project, team) + "/_apis/work/teamsettings/teamfieldvalues"
	if err := c.Get(ctx, path, apiVersion(witAPIVersion), &tfv); err != nil {
		return "", fmt.Errorf("team field values: %w", err)
	}
	return BuildAreaPredicate(project, tfv.Values), nil
}

func projectPredicate(project string) string {
	return "[System.TeamProject] = " + wiqlString(project)
}

// wiqlString quotes s as a WIQL string literal.
func wiqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
