package notifier

import (
	"strconv"
	"strings"
)

const (
	defaultHeadline  = "Ticket ready for testing"
	defaultItemEmoji = ":excitedstar:"
)

// Template holds the configurable parts of the message.
type Template struct {
	Headline  string
	ItemEmoji string
}

func (t Template) withDefaults() Template {
	if strings.TrimSpace(t.Headline) == "" {
		t.Headline = defaultHeadline
	}
	if strings.TrimSpace(t.ItemEmoji) == "" {
		t.ItemEmoji = defaultItemEmoji
	}
	return t
}

// Format renders n as Slack mrkdwn:
//
//	:excitedstar: *[WASP · Stories] Ticket ready for testing:* <url|#102 – Title>
func (t Template) Format(n Notification) string {
	t = t.withDefaults()
	var b strings.Builder
	b.WriteString(t.ItemEmoji)
	b.WriteString(" *[")
	b.WriteString(n.Team)
	b.WriteString(" · ")
	b.WriteString(n.Board)
	b.WriteString("] ")
	b.WriteString(t.Headline)
	b.WriteString(":* <")
	b.WriteString(n.URL)
	b.WriteString("|#")
	b.WriteString(strconv.Itoa(n.ItemID))
	b.WriteString(" – ")
	b.WriteString(slackEscape(n.Title))
	b.WriteString(">")
	return b.String()
}

// FormatPlain renders n without markup, URL on its own line.
func (t Template) FormatPlain(n Notification) string {
	t = t.withDefaults()
	return "[" + n.Team + " · " + n.Board + "] " + t.Headline + ": #" +
		strconv.Itoa(n.ItemID) + " – " + n.Title + "\n" + n.URL
}

// slackEscape escapes the three control characters of Slack mrkdwn.
func slackEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
