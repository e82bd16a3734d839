package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/camppoll/camppoll/src/types"
)

// AttendanceCSV renders a closed poll's votes as CSV with one row per voter
// per chosen option. usernames maps user id to display name; missing entries
// are written as "Unknown".
func AttendanceCSV(p *types.Poll, usernames map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"user_id", "username", "choice"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, opt := range p.Options {
		for _, userID := range opt.Votes {
			name := usernames[userID]
			if name == "" {
				name = "Unknown"
			}
			if err := w.Write([]string{userID, name, opt.Title}); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the attachment name for a poll export.
func Filename(p *types.Poll) string {
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("attendance_%s_%s.csv", p.PollDate, id)
}

var summaryColumns = []string{
	"Date Range", "Total Polls", "Generated At",
	"Poll ID", "Poll Date", "Event Title", "Event Type",
	"Votes", "Percentage", "Status",
}

// SummaryCSV renders a multi-poll summary: a metadata header row, then one
// block per poll (sorted by poll date) with its options ranked by votes.
func SummaryCSV(polls []types.Poll, dateRange string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(summaryColumns); err != nil {
		return nil, fmt.Errorf("write summary header: %w", err)
	}
	blank := make([]string, len(summaryColumns))
	meta := []string{
		dateRange, strconv.Itoa(len(polls)), now.UTC().Format("2006-01-02 15:04:05 UTC"),
		"", "", "", "", "", "", "HEADER",
	}
	if err := w.Write(meta); err != nil {
		return nil, fmt.Errorf("write summary meta: %w", err)
	}
	if err := w.Write(blank); err != nil {
		return nil, fmt.Errorf("write summary row: %w", err)
	}

	sorted := make([]types.Poll, len(polls))
	copy(sorted, polls)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PollDate < sorted[j].PollDate })

	for i := range sorted {
		p := &sorted[i]
		total := p.TotalVotes()
		status := "ACTIVE"
		if p.IsClosed() {
			status = "CLOSED"
		}
		head := []string{
			"", "", "", p.ID, p.PollDate,
			fmt.Sprintf("POLL SUMMARY (%d total votes)", total),
			"", "", "", status,
		}
		if err := w.Write(head); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}

		ranked := make([]types.PollOption, len(p.Options))
		copy(ranked, p.Options)
		sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].VoteCount() > ranked[b].VoteCount() })
		for _, opt := range ranked {
			pct := 0.0
			if total > 0 {
				pct = float64(opt.VoteCount()) / float64(total) * 100
			}
			row := []string{
				"", "", "", "", "", opt.Title, string(opt.Kind),
				strconv.Itoa(opt.VoteCount()), fmt.Sprintf("%.1f%%", pct), "",
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write summary row: %w", err)
			}
		}
		if err := w.Write(blank); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush summary csv: %w", err)
	}
	return buf.Bytes(), nil
}
