package ado

import (
	"context"
	"fmt"
	"strconv"
)

// ColumnQuery builds the WIQL selecting items of project sitting in column
// and matching areaPredicate.
func ColumnQuery(project, column, areaPredicate string) string {
	return "SELECT [System.Id], [System.Title] " +
		"FROM workitems " +
		"WHERE " + projectPredicate(project) + " " +
		"AND [System.BoardColumn] = " + wiqlString(column) + " " +
		"AND " + areaPredicate
}

// QueryColumn runs ColumnQuery and returns the matching ids in service order.
func (c *Client) QueryColumn(ctx context.Context, project, column, areaPredicate string) ([]int, error) {
	var resp wiqlResponse
	req := wiqlRequest{Query: ColumnQuery(project, column, areaPredicate)}
	if err := c.Post(ctx, scope(project)+"/_apis/wit/wiql", apiVersion(witAPIVersion), req, &resp); err != nil {
		return nil, fmt.Errorf("wiql query: %w", err)
	}
	ids := make([]int, 0, len(resp.WorkItems))
	for _, ref := range resp.WorkItems {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// WorkItem fetches title and web URL of one work item.
func (c *Client) WorkItem(ctx context.Context, project string, id int) (WorkItem, error) {
	var resp workItemResponse
	path := scope(project) + "/_apis/wit/workitems/" + strconv.Itoa(id)
	if err := c.Get(ctx, path, apiVersion(witAPIVersion), &resp); err != nil {
		return WorkItem{}, fmt.Errorf("work item %d: %w", id, err)
	}
	title, _ := resp.Fields["System.Title"].(string)
	return WorkItem{ID: id, Title: title, URL: resp.Links.HTML.Href}, nil
}
