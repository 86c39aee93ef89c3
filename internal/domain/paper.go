package domain

import "time"

// Source identifies the discussion platform a mention was observed on.
type Source string

const (
	SourceReddit      Source = "reddit"
	SourceHackerNews  Source = "hackernews"
	SourceHuggingFace Source = "huggingface"
)

// SourceMention is one platform's raw observation of a paper, immutable once
// collected. PaperID is empty until identity resolution when the platform
// record does not carry an arXiv link itself.
type SourceMention struct {
	Source     Source
	RawID      string
	PaperID    string
	Title      string
	URL        string
	Engagement float64
	Comments   int
	ObservedAt time.Time
}

// Candidate is the merged cross-source view of a single paper. Mentions are
// kept in collection order: sorted by (ObservedAt, Source, RawID) so the
// merge result does not depend on collector scheduling.
type Candidate struct {
	PaperID  string
	Title    string
	Mentions []SourceMention
	Score    float64
}

// EarliestObservedAt returns the oldest observation across mentions; it is
// the secondary ranking key.
func (c *Candidate) EarliestObservedAt() time.Time {
	var earliest time.Time
	for _, m := range c.Mentions {
		if earliest.IsZero() || m.ObservedAt.Before(earliest) {
			earliest = m.ObservedAt
		}
	}
	return earliest
}

// SourceEngagement sums raw engagement per source for scoring.
func (c *Candidate) SourceEngagement() map[Source]float64 {
	totals := make(map[Source]float64, len(c.Mentions))
	for _, m := range c.Mentions {
		totals[m.Source] += m.Engagement
	}
	return totals
}

// TotalComments sums comment counts across mentions for announcement stats.
func (c *Candidate) TotalComments() int {
	var n int
	for _, m := range c.Mentions {
		n += m.Comments
	}
	return n
}

// RankedList is a totally ordered sequence of candidates, strictly descending
// by score with the documented tie-break. Immutable once produced.
type RankedList []Candidate

// TopN truncates the list without reordering.
func (l RankedList) TopN(n int) RankedList {
	if n < 0 || n > len(l) {
		n = len(l)
	}
	return l[:n]
}

// LedgerEntry records a previously announced paper.
type LedgerEntry struct {
	PaperID     string
	AnnouncedAt time.Time
}

// Outcome classifies one publish attempt's final state.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// PublishResult is the per-(candidate, channel) delivery record. Produced
// once per channel attempt sequence, never mutated.
type PublishResult struct {
	Channel  string
	PaperID  string
	Outcome  Outcome
	Attempts int
	Err      error
}

// Enrichment carries the collaborator-supplied announcement material for a
// candidate selected for publishing.
type Enrichment struct {
	Title       string
	Authors     []string
	Summary     string
	Translation string
	Categories  []string
	PublishedAt time.Time
	ImageHandle string
}

// Announcement is the fully prepared payload handed to every channel.
type Announcement struct {
	Candidate  Candidate
	Enrichment Enrichment
	Rank       int
	Total      int
}

// RunReport summarizes one pipeline run for the operator log.
type RunReport struct {
	RunID        string
	StartedAt    time.Time
	Collected    int
	Dropped      int
	Merged       int
	Ranked       int
	Announced    int
	Skipped      int
	Failed       int
	SourceErrors map[Source]error
	Results      []PublishResult
}
