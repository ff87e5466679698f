package ado

import (
	"context"
	"net/http"
	"testing"
)

func TestBuildAreaPredicate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		values []TeamFieldValue
		want   string
	}{
		{
			name:   "include children",
			values: []TeamFieldValue{{Value: `Proj\Team`, IncludeChildren: true}},
			want:   `([System.AreaPath] UNDER 'Proj\Team')`,
		},
		{
			name:   "exact",
			values: []TeamFieldValue{{Value: `Proj\Team`}},
			want:   `([System.AreaPath] = 'Proj\Team')`,
		},
		{
			name: "mixed entries are OR'd in one group",
			values: []TeamFieldValue{
				{Value: `Proj\A`, IncludeChildren: true},
				{Value: `Proj\B`},
			},
			want: `([System.AreaPath] UNDER 'Proj\A' OR [System.AreaPath] = 'Proj\B')`,
		},
		{
			name:   "blank paths are skipped",
			values: []TeamFieldValue{{Value: ""}, {Value: `Proj\B`, IncludeChildren: true}},
			want:   `([System.AreaPath] UNDER 'Proj\B')`,
		},
		{
			name: "no values falls back to project",
			want: `[System.TeamProject] = 'Proj'`,
		},
		{
			name:   "no usable values falls back to project",
			values: []TeamFieldValue{{Value: "", IncludeChildren: true}},
			want:   `[System.TeamProject] = 'Proj'`,
		},
		{
			name:   "quotes are escaped",
			values: []TeamFieldValue{{Value: `Proj\O'Brien`}},
			want:   `([System.AreaPath] = 'Proj\O''Brien')`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BuildAreaPredicate("Proj", tt.values); got != tt.want {
				t.Fatalf("BuildAreaPredicate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTeamAreaPredicate(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/Proj/WASP/_apis/work/teamsettings/teamfieldvalues" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"field":        map[string]any{"referenceName": "System.AreaPath"},
			"defaultValue": `Proj\WASP`,
			"values":       []map[string]any{{"value": `Proj\WASP`, "includeChildren": true}},
		})
	})

	got, err := c.TeamAreaPredicate(context.Background(), "Proj", "WASP")
	if err != nil {
		t.Fatalf("TeamAreaPredicate error: %v", err)
	}
	if want := `([System.AreaPath] UNDER 'Proj\WASP')`; got != want {
		t.Fatalf("predicate = %s, want %s", got, want)
	}
}

func TestTeamAreaPredicateEmptyDegradesToProject(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"values": []any{}})
	})

	got, err := c.TeamAreaPredicate(context.Background(), "Proj", "WASP")
	if err != nil {
		t.Fatalf("TeamAreaPredicate error: %v", err)
	}
	if want := `[System.TeamProject] = 'Proj'`; got != want {
		t.Fatalf("predicate = %s, want %s", got, want)
	}
}
