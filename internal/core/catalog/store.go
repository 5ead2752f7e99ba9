// Package catalog is the system of record for recipes, their ingredients,
// instructions, pantry rows and stored embeddings.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"recipe-recommender/internal/pkg/common"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect 資料庫方言
type Dialect string

const (
	// Postgres 正式環境
	Postgres Dialect = "postgres"
	// SQLite 本機與測試
	SQLite Dialect = "sqlite"
)

// ErrNotFound 查無資料
var ErrNotFound = errors.New("catalog: not found")

func init() {
	// modernc 驅動註冊名稱為 "sqlite"，sqlx 預設不認得
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store 食譜目錄儲存層
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open 依驅動名稱開啟資料庫並建立資料表
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if dialect == SQLite {
		// 單一連線避免 database is locked 與 :memory: 分裂
		db.SetMaxOpenConns(1)
	}

	store, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	common.LogInfo("食譜目錄已連線",
		zap.String("driver", driver),
	)
	return store, nil
}

// NewStore 以既有連線建立儲存層並確保資料表存在
func NewStore(ctx context.Context, db *sqlx.DB) (*Store, error) {
	dialect, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.createSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Dialect 返回資料庫方言
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping 檢查資料庫連線
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 關閉資料庫連線
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx 在單一交易中執行 fn，fn 回傳錯誤時回滾
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			common.LogWarn("交易回滾失敗", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation 判斷是否為唯一性約束衝突
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// createSchema 建立資料表（已存在時略過）
func (s *Store) createSchema(ctx context.Context) error {
	serial := "BIGSERIAL PRIMARY KEY"
	if s.dialect == SQLite {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{serial}}", serial)); err != nil {
			return err
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS recipes (
		id {{serial}},
		name VARCHAR(255) NOT NULL UNIQUE,
		category VARCHAR(100),
		method VARCHAR(100),
		description TEXT,
		calories INTEGER,
		protein INTEGER,
		carbs INTEGER,
		fat INTEGER,
		sodium INTEGER,
		recipe_hash VARCHAR(255) NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS ingredient_master (
		id {{serial}},
		name VARCHAR(255) NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id {{serial}},
		recipe_id BIGINT NOT NULL REFERENCES recipes(id),
		master_id BIGINT NOT NULL REFERENCES ingredient_master(id),
		quantity DOUBLE PRECISION,
		unit VARCHAR(100),
		CONSTRAINT uq_ing_per_recipe UNIQUE (recipe_id, master_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ingredient_recipe_mapping (
		ingredient_id BIGINT NOT NULL REFERENCES ingredient_master(id),
		recipe_id BIGINT NOT NULL REFERENCES recipes(id),
		PRIMARY KEY (ingredient_id, recipe_id)
	)`,
	`CREATE TABLE IF NOT EXISTS instructions (
		id {{serial}},
		recipe_id BIGINT NOT NULL REFERENCES recipes(id),
		step INTEGER NOT NULL,
		instruction TEXT NOT NULL,
		CONSTRAINT uq_instruction_step UNIQUE (recipe_id, step)
	)`,
	`CREATE TABLE IF NOT EXISTS user_ingredients (
		user_id BIGINT NOT NULL,
		ingredient_id BIGINT NOT NULL REFERENCES ingredient_master(id),
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_embeddings (
		recipe_id BIGINT PRIMARY KEY REFERENCES recipes(id),
		embedding TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mapping_recipe ON ingredient_recipe_mapping (recipe_id)`,
}
