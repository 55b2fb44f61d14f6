package worklog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hitoshi/voltrack/internal/repository"
)

// csvHeader はエクスポートの列順。
var csvHeader = []string{"id", "discord_id", "commit_sha", "hours", "logged_at"}

// Exporter はボランティア時間記録のCSVエクスポートを提供する。
type Exporter struct {
	logRepo repository.WorkLogRepository
}

// NewExporter はExporterを生成する。
func NewExporter(logRepo repository.WorkLogRepository) *Exporter {
	return &Exporter{logRepo: logRepo}
}

// WriteCSV は全記録をCSV形式でwに書き出す。
// 1行目はヘッダー、日時はRFC 3339（UTC）で出力する。
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	logs, err := e.logRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load work logs: %w", err)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, log := range logs {
		record := []string{
			log.ID,
			log.DiscordID,
			log.CommitSHA,
			strconv.FormatFloat(log.Hours, 'f', -1, 64),
			log.LoggedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return nil
}
