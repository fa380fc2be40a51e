// Package history ведёт журнал выполнений в sqlite.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record - одно завершённое выполнение (успех или отказ; отклонённые
// триггеры в журнал не попадают).
type Record struct {
	ID               int64
	Timestamp        time.Time
	PresetName       string
	Provider         string
	Model            string
	Origin           string
	Success          bool
	ErrorKind        string
	InputTokens      int
	OutputTokens     int
	ElapsedMs        int64
	ClipboardChanged bool
}

// DayStats - агрегат за сегодня для строки статуса в трее.
type DayStats struct {
	Total        int
	SuccessCount int
	FailureCount int
	InputTokens  int
	OutputTokens int
	AvgElapsedMs float64
}

// Store - журнал выполнений поверх sqlite.
type Store struct {
	conn *sql.DB
}

// Open открывает базу журнала и инициализирует схему.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "history.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("открытие базы журнала: %w", err)
	}

	// WAL: запись из горутины выполнения не мешает чтению статистики
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("включение WAL: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("инициализация схемы: %w", err)
	}
	return s, nil
}

// Close закрывает базу журнала.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,

		preset_name TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		origin TEXT NOT NULL,

		success BOOLEAN NOT NULL,
		error_kind TEXT,

		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		clipboard_changed BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_executions_preset ON executions(preset_name);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Append добавляет запись в журнал.
func (s *Store) Append(r Record) error {
	query := `
		INSERT INTO executions (
			preset_name, provider, model, origin,
			success, error_kind, input_tokens, output_tokens,
			elapsed_ms, clipboard_changed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.conn.Exec(query,
		r.PresetName, r.Provider, r.Model, r.Origin,
		r.Success, nullable(r.ErrorKind), r.InputTokens, r.OutputTokens,
		r.ElapsedMs, r.ClipboardChanged,
	)
	if err != nil {
		return fmt.Errorf("запись выполнения: %w", err)
	}
	return nil
}

// Recent возвращает последние выполнения, новые первыми.
func (s *Store) Recent(limit int) ([]Record, error) {
	query := `
		SELECT
			id, timestamp, preset_name, provider, model, origin,
			success, error_kind, input_tokens, output_tokens,
			elapsed_ms, clipboard_changed
		FROM executions
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var errorKind sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.PresetName, &r.Provider, &r.Model, &r.Origin,
			&r.Success, &errorKind, &r.InputTokens, &r.OutputTokens,
			&r.ElapsedMs, &r.ClipboardChanged,
		)
		if err != nil {
			return nil, fmt.Errorf("чтение записи журнала: %w", err)
		}
		if errorKind.Valid {
			r.ErrorKind = errorKind.String
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// Today возвращает агрегат за текущие сутки.
func (s *Store) Today() (DayStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(AVG(elapsed_ms), 0)
		FROM executions
		WHERE DATE(timestamp) = DATE('now')
	`

	var stats DayStats
	err := s.conn.QueryRow(query).Scan(
		&stats.Total,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.InputTokens,
		&stats.OutputTokens,
		&stats.AvgElapsedMs,
	)
	if err != nil {
		return DayStats{}, fmt.Errorf("статистика за день: %w", err)
	}
	return stats, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
