package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	// 按错误文本判断，不依赖 driver 的错误类型
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked")
}

func queryRowsWithSQLiteBusyRetry(ctx context.Context, queryFn func() (*sql.Rows, error)) (*sql.Rows, error) {
	var rows *sql.Rows
	err := execWithSQLiteBusyRetry(ctx, func() error {
		var err error
		rows, err = queryFn()
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// execWithSQLiteBusyRetry 在 SQLITE_BUSY 时指数退避重试，直到成功、遇到其他错误或 ctx 结束
func execWithSQLiteBusyRetry(ctx context.Context, fn func() error) error {
	if ctx == nil {
		return fn()
	}

	backoff := 20 * time.Millisecond
	for {
		err := fn()
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}

		// 上层已取消时返回最后一次 busy 错误
		if ctx.Err() != nil {
			return err
		}

		wait := backoff
		if wait > 400*time.Millisecond {
			wait = 400 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff *= 2
	}
}

