package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open はSTORAGE_DRIVER=postgres 用にlib/pqで接続プールを開く。
// users・user_sessions・各記録テーブルは同じ接続を共有する。
// databaseURLの例: "postgres://pumpbook:pumpbook@db:5432/pumpbook?sslmode=disable"
// 接続の確認は呼び出し側がPingContextで行う。
func Open(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("failed to open database: DATABASE_URL is empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
