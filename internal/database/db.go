package database

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// Open はSQLiteデータベース接続を開く。
// dbPathはデータベースファイルのパスを指定する（例: "volunteer.db"）。
// busy_timeoutにより同一stateキーへの並行操作はドライバレベルで直列化される。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", dbPath, url.Values{
		"_busy_timeout": {"30000"},
		"_foreign_keys": {"on"},
		"_journal_mode": {"WAL"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
