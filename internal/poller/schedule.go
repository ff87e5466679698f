package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind describes the normalized kind of a poll schedule string.
type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecCron
)

// Schedule decides when the next cycle starts.
//
// Supported forms:
//   - Interval duration: "120s", "2m"
//   - Interval HH:MM: "00:02" (2 minutes)
//   - Cron (robfig/cron standard): "*/2 * * * *", "@hourly", "@every 2m"
//
// Optional prefixes "cron:" and "interval:"/"every:" force a form.
//
// Intervals are measured from the end of the previous cycle, so the period
// drifts by the cycle's own duration.
type Schedule struct {
	Kind   SpecKind
	Every  time.Duration
	Cron   string
	Source string // "duration" | "hhmm" | "cron"

	cron cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule parses raw into a Schedule.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("poll schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// whitespace or a leading '@' means cron
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	sch, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid poll schedule %q (use a duration like '120s', HH:MM like '00:02', or cron like '*/2 * * * *')", raw)
	}
	return sch, nil
}

// IntervalSchedule is a fixed delay schedule.
func IntervalSchedule(d time.Duration) Schedule {
	return Schedule{Kind: SpecInterval, Every: d, Source: "duration"}
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required")
	}
	cs, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Schedule{Kind: SpecCron, Cron: expr, Source: "cron", cron: cs}, nil
}

func parseInterval(v string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval must be > 0")
		}
		return Schedule{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// Next returns the start of the next cycle given the time the previous one
// finished.
func (s Schedule) Next(after time.Time) time.Time {
	if s.Kind == SpecCron && s.cron != nil {
		return s.cron.Next(after)
	}
	return after.Add(s.Every)
}

func (s Schedule) String() string {
	if s.Kind == SpecCron {
		return "cron " + s.Cron
	}
	return "every " + s.Every.String()
}
