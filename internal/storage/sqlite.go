package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// SQLiteVideoRepository stores video records in a local SQLite database.
type SQLiteVideoRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteVideoRepository opens (and if needed creates) the database at dbPath.
func NewSQLiteVideoRepository(dbPath string) (*SQLiteVideoRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT,
			video_key     TEXT NOT NULL DEFAULT '',
			video_url     TEXT,
			version       INTEGER NOT NULL DEFAULT 1,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create videos table: %w", err)
	}

	return &SQLiteVideoRepository{db: db, now: time.Now}, nil
}

// Close closes the database.
func (r *SQLiteVideoRepository) Close() error {
	return r.db.Close()
}

// CreateVideo inserts a new record at version 1.
func (r *SQLiteVideoRepository) CreateVideo(ctx context.Context, video *models.VideoRecord) error {
	now := r.now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	video.Version = 1

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, user_id, title, description, thumbnail_url, video_key, video_url, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.UserID, video.Title, video.Description,
		nullString(video.ThumbnailURL), video.VideoKey, nullString(video.VideoURL),
		video.Version, video.CreatedAt, video.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", models.ErrRecordExists, video.ID)
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a record by ID.
func (r *SQLiteVideoRepository) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, thumbnail_url, video_key, video_url, version, created_at, updated_at
		FROM videos WHERE id = ?`, videoID)

	var (
		v         models.VideoRecord
		thumbnail sql.NullString
		videoURL  sql.NullString
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &thumbnail,
		&v.VideoKey, &videoURL, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	v.ThumbnailURL = stringPtr(thumbnail)
	v.VideoURL = stringPtr(videoURL)
	return &v, nil
}

// UpdateVideo writes the record if its stored version still equals
// video.Version, then bumps the version.
func (r *SQLiteVideoRepository) UpdateVideo(ctx context.Context, video *models.VideoRecord) error {
	updatedAt := r.now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE videos
		SET user_id = ?, title = ?, description = ?, thumbnail_url = ?, video_key = ?, video_url = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		video.UserID, video.Title, video.Description, nullString(video.ThumbnailURL),
		video.VideoKey, nullString(video.VideoURL), updatedAt,
		video.ID, video.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		video.Version++
		video.UpdatedAt = updatedAt
		return nil
	case 0:
		return fmt.Errorf("%w: %s at version %d", models.ErrVersionConflict, video.ID, video.Version)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Ping checks that the database is usable.
func (r *SQLiteVideoRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
