package worklog

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/hitoshi/voltrack/internal/model"
)

func TestExporter_WriteCSV(t *testing.T) {
	loggedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	logRepo := &mockLogRepo{listed: []*model.WorkLog{
		{ID: "log-1", DiscordID: testDiscordID, CommitSHA: "abc1234", Hours: 2.5, LoggedAt: loggedAt},
		{ID: "log-2", DiscordID: testDiscordID, CommitSHA: "def5678", Hours: 1, LoggedAt: loggedAt.Add(time.Hour)},
	}}

	var buf bytes.Buffer
	if err := NewExporter(logRepo).WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3 (header + 2 rows)", len(records))
	}

	header := records[0]
	want := []string{"id", "discord_id", "commit_sha", "hours", "logged_at"}
	for i, col := range want {
		if header[i] != col {
			t.Errorf("header[%d] = %q, want %q", i, header[i], col)
		}
	}

	row := records[1]
	if row[0] != "log-1" || row[2] != "abc1234" || row[3] != "2.5" {
		t.Errorf("row = %v", row)
	}
	if row[4] != "2025-06-01T12:30:00Z" {
		t.Errorf("logged_at = %q, want RFC 3339 UTC", row[4])
	}
}

func TestExporter_WriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter(&mockLogRepo{}).WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported csv: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1 (header only)", len(records))
	}
}
