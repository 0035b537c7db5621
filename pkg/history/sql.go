package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists conversations in PostgreSQL, MySQL, or SQLite.
type SQLStore struct {
	db          *sql.DB
	dialect     string
	maxMessages int
}

const createMessagesTableSQLite = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON conversation_messages(conversation_id, sequence_num);
`

const createMessagesTablePostgres = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id SERIAL PRIMARY KEY,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON conversation_messages(conversation_id, sequence_num);
`

const createMessagesTableMySQL = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    INDEX idx_messages_conversation (conversation_id, sequence_num)
);
`

// NewSQLStore opens the configured database and initializes the schema.
func NewSQLStore(cfg *config.SQLConfig, maxMessages int) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sql configuration is required")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sql configuration: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database %q: %w",
			cfg.Driver, cfg.Database, err)
	}

	s := &SQLStore{
		db:          db,
		dialect:     cfg.Dialect(),
		maxMessages: maxMessages,
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	schema := createMessagesTableSQLite
	switch s.dialect {
	case "postgres":
		schema = createMessagesTablePostgres
	case "mysql":
		schema = createMessagesTableMySQL
	}

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind converts ?-placeholders to $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}

	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *SQLStore) Get(ctx context.Context, conversationID string, limit int) ([]llms.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversationID cannot be empty")
	}

	query := `
SELECT role, content FROM conversation_messages
WHERE conversation_id = ?
ORDER BY sequence_num ASC
`
	args := []interface{}{conversationID}

	if limit > 0 {
		query = `
SELECT role, content FROM (
    SELECT role, content, sequence_num FROM conversation_messages
    WHERE conversation_id = ?
    ORDER BY sequence_num DESC
    LIMIT ?
) sub ORDER BY sequence_num ASC
`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []llms.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, llms.Message{Role: llms.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func (s *SQLStore) Append(ctx context.Context, conversationID string, messages ...llms.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var startSeq int64
	seqQuery := s.rebind(`SELECT COALESCE(MAX(sequence_num), 0) FROM conversation_messages WHERE conversation_id = ?`)
	if err = tx.QueryRowContext(ctx, seqQuery, conversationID).Scan(&startSeq); err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	insertQuery := s.rebind(`
INSERT INTO conversation_messages (conversation_id, role, content, sequence_num, created_at)
VALUES (?, ?, ?, ?, ?)
`)

	now := time.Now()
	for i, message := range messages {
		seq := startSeq + int64(i) + 1
		if _, err = tx.ExecContext(ctx, insertQuery,
			conversationID, string(message.Role), message.Content, seq, now,
		); err != nil {
			return fmt.Errorf("failed to insert message at index %d: %w", i, err)
		}
	}

	if s.maxMessages > 0 {
		trimQuery := s.rebind(`
DELETE FROM conversation_messages
WHERE conversation_id = ? AND sequence_num <= ?
`)
		cutoff := startSeq + int64(len(messages)) - int64(s.maxMessages)
		if cutoff > 0 {
			if _, err = tx.ExecContext(ctx, trimQuery, conversationID, cutoff); err != nil {
				return fmt.Errorf("failed to trim messages: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}

	query := s.rebind(`DELETE FROM conversation_messages WHERE conversation_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
