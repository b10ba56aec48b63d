package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 设置分类与键
const (
	CategoryRadio = "radio"

	KeyVolume = "volume"
)

// ErrNotFound 设置不存在
var ErrNotFound = errors.New("setting not found")

// SettingRecord is one persisted setting.
type SettingRecord struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ValueType string    `json:"value_type"` // string, int
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsStore 定义设置存储接口
type SettingsStore interface {
	Get(ctx context.Context, category, key string) (*SettingRecord, error)
	Set(ctx context.Context, category, key, value string) error
	Delete(ctx context.Context, category, key string) error
	GetByCategory(ctx context.Context, category string) ([]*SettingRecord, error)
}

// SQLiteSettingsStore 实现 SettingsStore 接口
type SQLiteSettingsStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteSettingsStore 创建新的 SQLite 设置存储
func NewSQLiteSettingsStore(db *sql.DB) *SQLiteSettingsStore {
	return &SQLiteSettingsStore{db: db}
}

// Get returns the setting or ErrNotFound.
func (s *SQLiteSettingsStore) Get(ctx context.Context, category, key string) (*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		record    SettingRecord
		updatedAt string
	)
	err := execWithSQLiteBusyRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT category, key, value, value_type, updated_at FROM settings WHERE category = ? AND key = ?`,
			category, key,
		).Scan(&record.Category, &record.Key, &record.Value, &record.ValueType, &updatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取设置失败: %w", err)
	}
	record.UpdatedAt = parseSQLiteTime(updatedAt)
	return &record, nil
}

// Set 设置单个值（存在则更新，不存在则插入）
func (s *SQLiteSettingsStore) Set(ctx context.Context, category, key, value string) error {
	return s.set(ctx, category, key, value, "string")
}

func (s *SQLiteSettingsStore) set(ctx context.Context, category, key, value, valueType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := execWithSQLiteBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (category, key, value, value_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(category, key) DO UPDATE SET
				value = excluded.value,
				value_type = excluded.value_type
		`, category, key, value, valueType)
		return err
	})
	if err != nil {
		return fmt.Errorf("设置 %s.%s 失败: %w", category, key, err)
	}
	return nil
}

// Delete 删除单个设置
func (s *SQLiteSettingsStore) Delete(ctx context.Context, category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := execWithSQLiteBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE category = ? AND key = ?`, category, key)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("删除设置失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s.%s", ErrNotFound, category, key)
	}
	return nil
}

// GetByCategory 获取分类下的所有设置，按 key 排序
func (s *SQLiteSettingsStore) GetByCategory(ctx context.Context, category string) ([]*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := queryRowsWithSQLiteBusyRetry(ctx, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx,
			`SELECT category, key, value, value_type, updated_at FROM settings WHERE category = ? ORDER BY key ASC`,
			category)
	})
	if err != nil {
		return nil, fmt.Errorf("查询设置失败: %w", err)
	}
	defer rows.Close()

	var records []*SettingRecord
	for rows.Next() {
		var (
			r         SettingRecord
			updatedAt string
		)
		if err := rows.Scan(&r.Category, &r.Key, &r.Value, &r.ValueType, &updatedAt); err != nil {
			return nil, fmt.Errorf("扫描设置失败: %w", err)
		}
		r.UpdatedAt = parseSQLiteTime(updatedAt)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// GetInt returns the integer setting, or def when it is missing or malformed.
func (s *SQLiteSettingsStore) GetInt(ctx context.Context, category, key string, def int) (int, error) {
	r, err := s.Get(ctx, category, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(r.Value))
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetInt 保存整数设置
func (s *SQLiteSettingsStore) SetInt(ctx context.Context, category, key string, v int) error {
	return s.set(ctx, category, key, strconv.Itoa(v), "int")
}

func parseSQLiteTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
