package ado

import (
	"context"
	"fmt"
)

// ResolveBoard finds the team board whose name equals name exactly
// (case and whitespace sensitive).
func (c *Client) ResolveBoard(ctx context.Context, project, team, name string) (Board, error) {
	var resp listResponse[Board]
	path := scope(project, team) + "/_apis/work/boards"
	if err := c.Get(ctx, path, apiVersion(boardsAPIVersion), &resp); err != nil {
		return Board{}, fmt.Errorf("list boards: %w", err)
	}
	b, ok := findByName(resp.Value, name, func(b Board) string { return b.Name })
	if !ok {
		return Board{}, &NotFoundError{
			Kind:      "board",
			Name:      name,
			Scope:     fmt.Sprintf("team '%s'", team),
			Available: names(resp.Value, func(b Board) string { return b.Name }),
		}
	}
	return b, nil
}

// ResolveColumn finds the column on boardID whose name equals name exactly.
func (c *Client) ResolveColumn(ctx context.Context, project, team string, boardID ID, name string) (Column, error) {
	var resp listResponse[Column]
	path := scope(project, team) + "/_apis/work/boards/" + scope(string(boardID)) + "/columns"
	if err := c.Get(ctx, path, apiVersion(boardsAPIVersion), &resp); err != nil {
		return Column{}, fmt.Errorf("list columns: %w", err)
	}
	col, ok := findByName(resp.Value, name, func(c Column) string { return c.Name })
	if !ok {
		return Column{}, &NotFoundError{
			Kind:      "column",
			Name:      name,
			Scope:     fmt.Sprintf("board id %s", boardID),
			Available: names(resp.Value, func(c Column) string { return c.Name }),
		}
	}
	return col, nil
}

func findByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	for _, it := range items {
		if nameOf(it) == name {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func names[T any](items []T, nameOf func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, nameOf(it))
	}
	return out
}
