package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/marksfx/content-agent/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStorageWithDB is used by tests to inject a mock connection.
func NewPostgresStorageWithDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// isUniqueViolation reports a duplicate-key insert. Callers treat it as
// expected control flow, not an error.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

const accountColumns = `id, twitter_handle, twitter_id, category, subcategory, priority,
	follower_count, is_voice_reference, voice_pillars, is_active,
	last_tweet_id, last_checked_at, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.MonitoredAccount, error) {
	var (
		a             models.MonitoredAccount
		twitterID     sql.NullString
		subcategory   sql.NullString
		followerCount sql.NullInt64
		pillars       pq.StringArray
		lastTweetID   sql.NullString
		lastChecked   sql.NullTime
	)
	err := row.Scan(&a.ID, &a.TwitterHandle, &twitterID, &a.Category, &subcategory,
		&a.Priority, &followerCount, &a.IsVoiceReference, &pillars, &a.IsActive,
		&lastTweetID, &lastChecked, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.TwitterID = twitterID.String
	a.Subcategory = subcategory.String
	a.FollowerCount = int(followerCount.Int64)
	for _, p := range pillars {
		a.VoicePillars = append(a.VoicePillars, models.Pillar(p))
	}
	a.LastTweetID = lastTweetID.String
	if lastChecked.Valid {
		t := lastChecked.Time
		a.LastCheckedAt = &t
	}
	return &a, nil
}

func pillarStrings(pillars []models.Pillar) pq.StringArray {
	out := make(pq.StringArray, len(pillars))
	for i, p := range pillars {
		out[i] = string(p)
	}
	return out
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, account *models.MonitoredAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Priority == 0 {
		account.Priority = 2
	}
	account.IsActive = true
	account.CreatedAt = time.Now()

	query := `
		INSERT INTO monitored_accounts
			(id, twitter_handle, twitter_id, category, subcategory, priority,
			 follower_count, is_voice_reference, voice_pillars, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.TwitterHandle, nullString(account.TwitterID),
		account.Category, nullString(account.Subcategory), account.Priority,
		account.FollowerCount, account.IsVoiceReference,
		pillarStrings(account.VoicePillars), account.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetAccountByHandle(ctx context.Context, handle string) (*models.MonitoredAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM monitored_accounts
		WHERE LOWER(twitter_handle) = LOWER($1)`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, handle))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying account: %w", err)
	}
	return account, nil
}

func (s *PostgresStorage) ActiveAccounts(ctx context.Context, category models.Category) ([]models.MonitoredAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM monitored_accounts
		WHERE is_active = TRUE`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY priority, twitter_handle`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.MonitoredAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *PostgresStorage) VoiceReferences(ctx context.Context) ([]models.MonitoredAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM monitored_accounts
		WHERE is_active = TRUE AND is_voice_reference = TRUE
		ORDER BY twitter_handle`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying voice references: %w", err)
	}
	defer rows.Close()

	var accounts []models.MonitoredAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *PostgresStorage) SetVoiceReference(ctx context.Context, accountID string, isVoice bool, pillars []models.Pillar) error {
	query := `
		UPDATE monitored_accounts
		SET is_voice_reference = $1, voice_pillars = $2
		WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, isVoice, pillarStrings(pillars), accountID)
	if err != nil {
		return fmt.Errorf("error updating voice reference: %w", err)
	}
	return requireRow(result, "account")
}

func (s *PostgresStorage) DeactivateAccount(ctx context.Context, accountID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE monitored_accounts SET is_active = FALSE WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("error deactivating account: %w", err)
	}
	return requireRow(result, "account")
}

func (s *PostgresStorage) UpdateAccountCursor(ctx context.Context, accountID, lastTweetID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE monitored_accounts
		SET last_tweet_id = COALESCE(NULLIF($1, ''), last_tweet_id), last_checked_at = NOW()
		WHERE id = $2`, lastTweetID, accountID)
	if err != nil {
		return fmt.Errorf("error updating account cursor: %w", err)
	}
	return nil
}

func (s *PostgresStorage) KnownHandles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT twitter_handle FROM monitored_accounts WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("error querying handles: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("error scanning handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

func (s *PostgresStorage) CreateRSSSource(ctx context.Context, source *models.RSSSource) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	if source.Priority == 0 {
		source.Priority = 2
	}
	source.IsActive = true
	source.CreatedAt = time.Now()

	query := `
		INSERT INTO rss_sources (id, name, url, category, subcategory, keywords, priority, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)`

	_, err := s.db.ExecContext(ctx, query,
		source.ID, source.Name, source.URL, source.Category,
		nullString(source.Subcategory), pq.Array(source.Keywords),
		source.Priority, source.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating rss source: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ActiveRSSSources(ctx context.Context) ([]models.RSSSource, error) {
	query := `
		SELECT id, name, url, category, subcategory, keywords, priority, is_active, last_checked_at, created_at
		FROM rss_sources
		WHERE is_active = TRUE
		ORDER BY priority, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying rss sources: %w", err)
	}
	defer rows.Close()

	var sources []models.RSSSource
	for rows.Next() {
		var (
			src         models.RSSSource
			subcategory sql.NullString
			keywords    pq.StringArray
			lastChecked sql.NullTime
		)
		err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Category,
			&subcategory, &keywords, &src.Priority, &src.IsActive, &lastChecked, &src.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning rss source: %w", err)
		}
		src.Subcategory = subcategory.String
		src.Keywords = []string(keywords)
		if lastChecked.Valid {
			t := lastChecked.Time
			src.LastCheckedAt = &t
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *PostgresStorage) UpdateRSSSourceChecked(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rss_sources SET last_checked_at = NOW() WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("error updating rss source: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveTweet(ctx context.Context, tweet *models.Tweet) error {
	if tweet.ID == "" {
		tweet.ID = uuid.New().String()
	}
	tweet.FetchedAt = time.Now()

	query := `
		INSERT INTO monitored_tweets
			(id, tweet_id, account_id, account_handle, content, tweet_created_at,
			 fetched_at, relevance_score, relevance_type, suggested_content, notified, actioned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		tweet.ID, tweet.TweetID, tweet.AccountID, tweet.AccountHandle,
		tweet.Content, tweet.TweetCreatedAt, tweet.FetchedAt,
		tweet.RelevanceScore, tweet.RelevanceType,
		nullString(tweet.SuggestedContent), tweet.Notified, tweet.Actioned)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("error saving tweet: %w", err)
	}
	return nil
}

func (s *PostgresStorage) MarkTweetNotified(ctx context.Context, tweetID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE monitored_tweets SET notified = TRUE WHERE tweet_id = $1`, tweetID)
	if err != nil {
		return fmt.Errorf("error marking tweet notified: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveRSSItem(ctx context.Context, item *models.RSSItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.FetchedAt = time.Now()

	query := `
		INSERT INTO rss_items
			(id, guid, source_id, source_name, title, url, summary, published_at,
			 fetched_at, relevance_score, relevance_type, suggested_content, notified, actioned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.GUID, item.SourceID, item.SourceName, item.Title,
		nullString(item.URL), nullString(item.Summary), item.PublishedAt,
		item.FetchedAt, item.RelevanceScore, item.RelevanceType,
		nullString(item.SuggestedContent), item.Notified, item.Actioned)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("error saving rss item: %w", err)
	}
	return nil
}

func (s *PostgresStorage) MarkRSSItemNotified(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rss_items SET notified = TRUE WHERE guid = $1`, guid)
	if err != nil {
		return fmt.Errorf("error marking rss item notified: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ReplaceVoiceSamples(ctx context.Context, accountID string, samples []models.VoiceSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM voice_samples WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("error clearing voice samples: %w", err)
	}

	for _, sample := range samples {
		id := sample.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO voice_samples (id, account_id, tweet_id, content, fetched_at)
			VALUES ($1, $2, $3, $4, NOW())`,
			id, accountID, sample.TweetID, sample.Content)
		if err != nil {
			return fmt.Errorf("error inserting voice sample: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStorage) VoiceSamplesForPillar(ctx context.Context, pillar models.Pillar, limit int) ([]models.VoiceSample, error) {
	query := `
		SELECT vs.id, vs.account_id, vs.tweet_id, vs.content, vs.fetched_at
		FROM voice_samples vs
		JOIN monitored_accounts ma ON ma.id = vs.account_id
		WHERE ma.is_voice_reference = TRUE
		  AND ma.is_active = TRUE
		  AND (ma.voice_pillars = '{}' OR $1 = ANY(ma.voice_pillars))
		ORDER BY vs.fetched_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, string(pillar), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying voice samples: %w", err)
	}
	defer rows.Close()

	var samples []models.VoiceSample
	for rows.Next() {
		var sample models.VoiceSample
		if err := rows.Scan(&sample.ID, &sample.AccountID, &sample.TweetID,
			&sample.Content, &sample.FetchedAt); err != nil {
			return nil, fmt.Errorf("error scanning voice sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *PostgresStorage) AddFeedback(ctx context.Context, fb models.Feedback) error {
	id := fb.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_feedback (id, pillar, original_content, feedback_text, thread_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		id, fb.Pillar, nullString(fb.OriginalContent), fb.FeedbackText, nullString(fb.ThreadID))
	if err != nil {
		return fmt.Errorf("error adding feedback: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentFeedback(ctx context.Context, pillar models.Pillar, limit int) ([]models.Feedback, error) {
	query := `
		SELECT id, pillar, original_content, feedback_text, thread_id, created_at
		FROM voice_feedback`
	args := []any{}
	if pillar != "" {
		query += ` WHERE pillar = $1`
		args = append(args, pillar)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying feedback: %w", err)
	}
	defer rows.Close()

	var items []models.Feedback
	for rows.Next() {
		var (
			fb       models.Feedback
			original sql.NullString
			threadID sql.NullString
		)
		if err := rows.Scan(&fb.ID, &fb.Pillar, &original, &fb.FeedbackText,
			&threadID, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning feedback: %w", err)
		}
		fb.OriginalContent = original.String
		fb.ThreadID = threadID.String
		items = append(items, fb)
	}
	return items, rows.Err()
}

func (s *PostgresStorage) FeedbackForPrompt(ctx context.Context, pillar models.Pillar, limit int) (string, error) {
	items, err := s.RecentFeedback(ctx, pillar, limit)
	if err != nil {
		return "", err
	}
	return FormatFeedback(items), nil
}

func (s *PostgresStorage) AddContentHistory(ctx context.Context, record models.ContentHistory) error {
	id := record.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_history (id, type, pillar, topic, angle, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		id, record.Type, nullString(string(record.Pillar)),
		nullString(record.Topic), nullString(record.Angle), record.Content)
	if err != nil {
		return fmt.Errorf("error adding content history: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentTopics(ctx context.Context, pillar models.Pillar, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic FROM content_history
		WHERE pillar = $1 AND topic IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $2`, pillar, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("error scanning topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}
