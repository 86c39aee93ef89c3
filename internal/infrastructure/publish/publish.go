// Package publish contains the per-channel delivery adapters. All three
// implement ports.Publisher so the fan-out is written once and tested
// against fakes.
package publish

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"papertrends/internal/domain"
	"papertrends/pkg/arxivid"
)

// Error is a classified channel failure. Retriable errors (rate limits,
// server errors, transport failures) are retried by the fan-out; permanent
// ones (auth, malformed payload) are recorded FAILED immediately.
type Error struct {
	Channel   string
	Status    int
	Retriable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s publish: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetriable reports whether the fan-out should retry the attempt. Errors
// without classification (transport-level) count as transient.
func IsRetriable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retriable
	}
	return true
}

// statusError classifies an HTTP response code.
func statusError(channel string, status int) *Error {
	retriable := status == http.StatusTooManyRequests || status >= 500
	return &Error{
		Channel:   channel,
		Status:    status,
		Retriable: retriable,
		Err:       fmt.Errorf("unexpected status %d", status),
	}
}

func transportError(channel string, err error) *Error {
	return &Error{Channel: channel, Retriable: true, Err: err}
}

func permanentError(channel string, err error) *Error {
	return &Error{Channel: channel, Retriable: false, Err: err}
}

// announcementText renders the shared plain-text form of an announcement:
// rank marker, engagement stats, link line, title, authors.
func announcementText(a domain.Announcement) string {
	c := a.Candidate
	lines := []string{
		fmt.Sprintf("[%d/%d] %s", a.Rank, a.Total, statsLine(c)),
		fmt.Sprintf("%s %s, %s",
			arxivid.AbsURL(c.PaperID),
			strings.Join(a.Enrichment.Categories, " | "),
			a.Enrichment.PublishedAt.Format("02 Jan 2006")),
		"",
		a.Enrichment.Title,
		"",
		strings.Join(a.Enrichment.Authors, ", "),
	}
	return strings.Join(lines, "\n")
}

// statsLine sums engagement across the candidate's mentions.
func statsLine(c domain.Candidate) string {
	var upvotes float64
	for _, m := range c.Mentions {
		upvotes += m.Engagement
	}
	return fmt.Sprintf("%.0f Upvotes, %d Comments, %d Posts", upvotes, c.TotalComments(), len(c.Mentions))
}

// charWidth counts east-asian characters as two columns, the way the
// channels measure post length.
func charWidth(r rune) int {
	if unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana) {
		return 2
	}
	return 1
}

// clip trims text to maxWidth display columns, appending dots when trimmed.
// Text that already fits passes through untouched; the dots reserve columns
// only when trimming actually happens.
func clip(text string, maxWidth int) string {
	const dots = "..."
	var total int
	for _, r := range text {
		total += charWidth(r)
	}
	if total <= maxWidth {
		return text
	}

	budget := maxWidth - len(dots)
	var width int
	for i, r := range text {
		w := charWidth(r)
		if width+w > budget {
			return text[:i] + dots
		}
		width += w
	}
	return text
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
