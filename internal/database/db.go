package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"looped/infrastructure"
	"looped/internal/backend"
)

type Database struct {
	*gorm.DB
	sql *sql.DB
}

func NewDatabase(dsn string) (*Database, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SetMaxIdleConns sets the maximum number of connections in the idle connection pool.
	sqlDB.SetMaxIdleConns(10)

	// SetMaxOpenConns sets the maximum number of open connections to the database.
	sqlDB.SetMaxOpenConns(100)

	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("connected to database")

	return &Database{DB: db, sql: sqlDB}, nil
}

func (db *Database) SQL() *sql.DB {
	return db.sql
}

func (db *Database) Close() error {
	return db.sql.Close()
}

// Migrate creates the tables.
func (db *Database) Migrate(ctx context.Context) error {
	err := db.WithContext(ctx).AutoMigrate(&Profile{}, &Follow{}, &FollowRequest{}, &Post{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("database migration completed")
	return nil
}

// SyncTriggers installs the change triggers that feed the postgres realtime
// driver when enabled, and removes them otherwise so that no other driver
// pays for pg_notify on every write.
func (db *Database) SyncTriggers(ctx context.Context, enabled bool) error {
	return syncTriggers(ctx, db.sql, enabled)
}

var changeTables = []backend.Table{
	backend.TableProfiles, backend.TableFollows, backend.TableFollowRequests, backend.TablePosts,
}

func syncTriggers(ctx context.Context, sqlDB *sql.DB, enabled bool) error {
	return infrastructure.WithTransaction(sqlDB, ctx, func(tx *sql.Tx) error {
		if enabled {
			if _, err := tx.ExecContext(ctx, keysFunction); err != nil {
				return fmt.Errorf("failed to create change keys function: %w", err)
			}
			if _, err := tx.ExecContext(ctx, notifyFunction); err != nil {
				return fmt.Errorf("failed to create notify function: %w", err)
			}
		}
		for _, table := range changeTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TRIGGER IF EXISTS looped_changes ON %s", table)); err != nil {
				return fmt.Errorf("failed to drop trigger on %s: %w", table, err)
			}
			if !enabled {
				continue
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				"CREATE TRIGGER looped_changes AFTER INSERT OR UPDATE OR DELETE ON %s "+
					"FOR EACH ROW EXECUTE FUNCTION looped_notify_change()", table)); err != nil {
				return fmt.Errorf("failed to create trigger on %s: %w", table, err)
			}
		}
		return nil
	})
}

// keysFunction strips a row down to its key columns. pg_notify payloads are
// limited to 8000 bytes, and subscribers only filter on keys.
var keysFunction = `
CREATE OR REPLACE FUNCTION looped_change_keys(row_data jsonb) RETURNS jsonb AS $$
	SELECT COALESCE(jsonb_object_agg(key, value), '{}'::jsonb)
	FROM jsonb_each(row_data)
	WHERE key IN (` + quoteList(backend.ChangeKeyColumns) + `);
$$ LANGUAGE sql IMMUTABLE;`

var notifyFunction = `
CREATE OR REPLACE FUNCTION looped_notify_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + backend.NotifyChannel + `', json_build_object(
		'table', TG_TABLE_NAME,
		'type', TG_OP,
		'record', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE looped_change_keys(to_jsonb(NEW)) END,
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE looped_change_keys(to_jsonb(OLD)) END,
		'commit_time', now()
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

type Profile struct {
	ID          string `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
	Bio         string `gorm:"not null;default:''"`
	AvatarRef   string `gorm:"not null;default:'default_avatar'"`
	IsVerified  bool   `gorm:"not null;default:false"`
	IsPublic    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Follow struct {
	FollowerID  string `gorm:"primaryKey;check:no_self_follow,follower_id <> following_id"`
	FollowingID string `gorm:"primaryKey;index"`
	CreatedAt   time.Time
}

type FollowRequest struct {
	ID              string `gorm:"primaryKey"`
	FollowerID      string `gorm:"not null;uniqueIndex:idx_follow_requests_pair"`
	FollowingID     string `gorm:"not null;uniqueIndex:idx_follow_requests_pair;index"`
	CreatedAt       time.Time
	FollowerProfile string `gorm:"not null;default:'{}'"`
}

type Post struct {
	ID        string    `gorm:"primaryKey"`
	AuthorID  string    `gorm:"not null;index"`
	Period    string    `gorm:"not null"`
	Kind      string    `gorm:"not null"`
	Items     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}
