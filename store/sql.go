package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/models"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

var reIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// videoRow is the column layout of the videos table. Hashtags and raw
// metadata are stored as JSON text.
type videoRow struct {
	ID              string `db:"id"`
	URL             string `db:"url"`
	Author          string `db:"author"`
	Username        string `db:"username"`
	Title           string `db:"title"`
	Description     string `db:"description"`
	FullDescription string `db:"full_description"`
	Likes           string `db:"likes"`
	Comments        string `db:"comments"`
	Shares          string `db:"shares"`
	Views           string `db:"views"`
	Hashtags        string `db:"hashtags"`
	Date            string `db:"date"`
	VideoURL        string `db:"video_url"`
	ThumbnailURL    string `db:"thumbnail_url"`
	AudioInfo       string `db:"audio_info"`
	RawMetadata     string `db:"raw_metadata"`
}

const selectColumns = `id, url, author, username, title, description, full_description,
	likes, comments, shares, views, hashtags, "date", video_url, thumbnail_url,
	audio_info, raw_metadata`

func toRow(rec *models.VideoRecord) (*videoRow, error) {
	tags := rec.Hashtags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode hashtags: %w", err)
	}
	meta := rec.RawMetadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode raw metadata: %w", err)
	}
	return &videoRow{
		ID:              rec.ID,
		URL:             rec.URL,
		Author:          rec.Author,
		Username:        rec.Username,
		Title:           rec.Title,
		Description:     rec.Description,
		FullDescription: rec.FullDescription,
		Likes:           rec.Likes,
		Comments:        rec.Comments,
		Shares:          rec.Shares,
		Views:           rec.Views,
		Hashtags:        string(tagsJSON),
		Date:            rec.Date,
		VideoURL:        rec.VideoURL,
		ThumbnailURL:    rec.ThumbnailURL,
		AudioInfo:       rec.AudioInfo,
		RawMetadata:     string(metaJSON),
	}, nil
}

func (r *videoRow) toRecord() (*models.VideoRecord, error) {
	rec := &models.VideoRecord{
		ID:              r.ID,
		URL:             r.URL,
		Author:          r.Author,
		Username:        r.Username,
		Title:           r.Title,
		Description:     r.Description,
		FullDescription: r.FullDescription,
		Likes:           r.Likes,
		Comments:        r.Comments,
		Shares:          r.Shares,
		Views:           r.Views,
		Date:            r.Date,
		VideoURL:        r.VideoURL,
		ThumbnailURL:    r.ThumbnailURL,
		AudioInfo:       r.AudioInfo,
	}
	if err := json.Unmarshal([]byte(r.Hashtags), &rec.Hashtags); err != nil {
		return nil, fmt.Errorf("decode hashtags: %w", err)
	}
	if err := json.Unmarshal([]byte(r.RawMetadata), &rec.RawMetadata); err != nil {
		return nil, fmt.Errorf("decode raw metadata: %w", err)
	}
	return rec, nil
}

// SQLStore upserts records through sqlx. The same SQL runs on Postgres
// and SQLite; only the schema file differs.
type SQLStore struct {
	db        *sqlx.DB
	driver    string
	table     string
	upsertSQL string
}

// NewSQLStore wraps an open connection. driver is "postgres" or "sqlite".
func NewSQLStore(db *sqlx.DB, driver, table string) (*SQLStore, error) {
	if !reIdentifier.MatchString(table) {
		return nil, models.NewScrapeError(models.ErrCodeConfiguration, "invalid table name: "+table, nil)
	}
	return &SQLStore{
		db:        db,
		driver:    driver,
		table:     table,
		upsertSQL: upsertQuery(table),
	}, nil
}

// Open connects to the backend named by cfg.Driver. It returns nil, nil
// for the "none" driver.
func Open(ctx context.Context, cfg config.StoreConfig) (*SQLStore, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "postgres":
		db, err = sqlx.Open("postgres", cfg.DSN)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(30 * time.Minute)
		}
	case "sqlite":
		db, err = sqlx.Open("sqlite", sqliteDSN(cfg.DSN))
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, models.NewScrapeError(models.ErrCodeConfiguration, "unknown store driver: "+cfg.Driver, nil)
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodePersistence, "open "+cfg.Driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, models.NewScrapeError(models.ErrCodePersistence, "connect to "+cfg.Driver, err)
	}

	s, err := NewSQLStore(db, cfg.Driver, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN adds WAL and busy-timeout pragmas to a plain file path.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, (5 * time.Second).Milliseconds())
}

func upsertQuery(table string) string {
	cols := []string{
		"id", "url", "author", "username", "title", "description", "full_description",
		"likes", "comments", "shares", "views", "hashtags", "date", "video_url",
		"thumbnail_url", "audio_info", "raw_metadata",
	}
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	var updates []string
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
		params[i] = ":" + c
		if c != "id" {
			updates = append(updates, fmt.Sprintf(`"%s" = EXCLUDED."%s"`, c, c))
		}
	}
	updates = append(updates, "updated_at = CURRENT_TIMESTAMP")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(quoted, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

// Migrate creates the table and its indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	raw, err := migrations.ReadFile("migrations/" + s.driver + ".sql")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeConfiguration, "no schema for driver "+s.driver, err)
	}
	schema := strings.ReplaceAll(string(raw), "{{table}}", s.table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return models.NewScrapeError(models.ErrCodePersistence, "apply schema", err)
	}
	return nil
}

func (s *SQLStore) Upsert(ctx context.Context, rec *models.VideoRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return models.NewScrapeError(models.ErrCodePersistence, "encode record "+rec.ID, err)
	}
	if _, err := s.db.NamedExecContext(ctx, s.upsertSQL, row); err != nil {
		return models.NewScrapeError(models.ErrCodePersistence, "upsert record "+rec.ID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	query := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns, s.table))

	var row videoRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewScrapeError(models.ErrCodeNotFound, "record not found: "+id, err)
		}
		return nil, models.NewScrapeError(models.ErrCodePersistence, "load record "+id, err)
	}
	return row.toRecord()
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+s.table); err != nil {
		return 0, models.NewScrapeError(models.ErrCodePersistence, "count records", err)
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return models.NewScrapeError(models.ErrCodePersistence, "ping "+s.driver, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
