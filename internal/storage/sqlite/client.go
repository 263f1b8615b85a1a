package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
	"github.com/sitebot/backend/pkg/logger"
	"github.com/sitebot/backend/pkg/retry"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The file may live on slow or just-provisioned storage; give the first
	// connection a few attempts before giving up.
	err = retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		return db.Ping()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS websites (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		pages_scanned TEXT,
		content TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_websites_owner ON websites(owner_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_websites_owner_url ON websites(owner_id, url);

	CREATE TABLE IF NOT EXISTS chatbots (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		website_id TEXT,
		name TEXT NOT NULL,
		greeting_type TEXT NOT NULL DEFAULT 'custom',
		greeting_messages TEXT,
		knowledge_base TEXT,
		is_active INTEGER DEFAULT 0,
		test_url TEXT,
		embed_code TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chatbots_owner ON chatbots(owner_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		chatbot_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chatbot_session ON chat_messages(chatbot_id, session_id, created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateWebsite(ctx context.Context, website *models.Website) error {
	pages, _ := json.Marshal(website.PagesScanned)
	content, _ := json.Marshal(website.Content)

	query := `
		INSERT INTO websites (id, owner_id, url, status, pages_scanned, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		website.ID,
		website.OwnerID,
		website.URL,
		website.Status,
		string(pages),
		string(content),
		website.CreatedAt.Unix(),
		website.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert website: %w", err)
	}

	logger.Debug("Website created", zap.String("website_id", website.ID), zap.String("url", website.URL))
	return nil
}

func (c *Client) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	query := `SELECT id, owner_id, url, status, pages_scanned, content, created_at, updated_at FROM websites WHERE id = ?`
	return c.scanWebsite(c.db.QueryRowContext(ctx, query, id))
}

func (c *Client) GetWebsiteByOwnerAndURL(ctx context.Context, ownerID, url string) (*models.Website, error) {
	query := `SELECT id, owner_id, url, status, pages_scanned, content, created_at, updated_at FROM websites WHERE owner_id = ? AND url = ?`
	return c.scanWebsite(c.db.QueryRowContext(ctx, query, ownerID, url))
}

func (c *Client) scanWebsite(row *sql.Row) (*models.Website, error) {
	var w models.Website
	var pages, content string
	var createdAt, updatedAt int64

	err := row.Scan(&w.ID, &w.OwnerID, &w.URL, &w.Status, &pages, &content, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website: %w", err)
	}

	json.Unmarshal([]byte(pages), &w.PagesScanned)
	json.Unmarshal([]byte(content), &w.Content)
	w.CreatedAt = time.Unix(createdAt, 0)
	w.UpdatedAt = time.Unix(updatedAt, 0)

	return &w, nil
}

func (c *Client) ListWebsitesByOwner(ctx context.Context, ownerID string) ([]models.Website, error) {
	query := `
		SELECT id, owner_id, url, status, pages_scanned, content, created_at, updated_at
		FROM websites
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()

	var websites []models.Website
	for rows.Next() {
		var w models.Website
		var pages, content string
		var createdAt, updatedAt int64

		err := rows.Scan(&w.ID, &w.OwnerID, &w.URL, &w.Status, &pages, &content, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(pages), &w.PagesScanned)
		json.Unmarshal([]byte(content), &w.Content)
		w.CreatedAt = time.Unix(createdAt, 0)
		w.UpdatedAt = time.Unix(updatedAt, 0)
		websites = append(websites, w)
	}

	return websites, rows.Err()
}

func (c *Client) UpdateWebsite(ctx context.Context, website *models.Website) error {
	pages, _ := json.Marshal(website.PagesScanned)
	content, _ := json.Marshal(website.Content)

	query := `
		UPDATE websites
		SET url = ?, status = ?, pages_scanned = ?, content = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := c.db.ExecContext(ctx, query,
		website.URL,
		website.Status,
		string(pages),
		string(content),
		time.Now().Unix(),
		website.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update website: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (c *Client) DeleteWebsite(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM websites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete website: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *Client) CreateChatbot(ctx context.Context, chatbot *models.Chatbot) error {
	greetings, _ := json.Marshal(chatbot.GreetingMessages)
	kb, _ := json.Marshal(chatbot.KnowledgeBase)

	isActive := 0
	if chatbot.IsActive {
		isActive = 1
	}

	query := `
		INSERT INTO chatbots (id, owner_id, website_id, name, greeting_type, greeting_messages,
			knowledge_base, is_active, test_url, embed_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		chatbot.ID,
		chatbot.OwnerID,
		chatbot.WebsiteID,
		chatbot.Name,
		chatbot.GreetingType,
		string(greetings),
		string(kb),
		isActive,
		chatbot.TestURL,
		chatbot.EmbedCode,
		chatbot.CreatedAt.Unix(),
		chatbot.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chatbot: %w", err)
	}

	logger.Debug("Chatbot created", zap.String("chatbot_id", chatbot.ID), zap.String("name", chatbot.Name))
	return nil
}

func (c *Client) GetChatbot(ctx context.Context, id string) (*models.Chatbot, error) {
	query := `
		SELECT id, owner_id, website_id, name, greeting_type, greeting_messages,
			knowledge_base, is_active, test_url, embed_code, created_at, updated_at
		FROM chatbots WHERE id = ?
	`

	var b models.Chatbot
	var greetings, kb string
	var isActive int
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.OwnerID, &b.WebsiteID, &b.Name, &b.GreetingType,
		&greetings, &kb, &isActive, &b.TestURL, &b.EmbedCode, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chatbot: %w", err)
	}

	json.Unmarshal([]byte(greetings), &b.GreetingMessages)
	json.Unmarshal([]byte(kb), &b.KnowledgeBase)
	b.IsActive = isActive != 0
	b.CreatedAt = time.Unix(createdAt, 0)
	b.UpdatedAt = time.Unix(updatedAt, 0)

	return &b, nil
}

func (c *Client) ListChatbotsByOwner(ctx context.Context, ownerID string) ([]models.Chatbot, error) {
	query := `
		SELECT id, owner_id, website_id, name, greeting_type, greeting_messages,
			knowledge_base, is_active, test_url, embed_code, created_at, updated_at
		FROM chatbots
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chatbots: %w", err)
	}
	defer rows.Close()

	var chatbots []models.Chatbot
	for rows.Next() {
		var b models.Chatbot
		var greetings, kb string
		var isActive int
		var createdAt, updatedAt int64

		err := rows.Scan(
			&b.ID, &b.OwnerID, &b.WebsiteID, &b.Name, &b.GreetingType,
			&greetings, &kb, &isActive, &b.TestURL, &b.EmbedCode, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(greetings), &b.GreetingMessages)
		json.Unmarshal([]byte(kb), &b.KnowledgeBase)
		b.IsActive = isActive != 0
		b.CreatedAt = time.Unix(createdAt, 0)
		b.UpdatedAt = time.Unix(updatedAt, 0)
		chatbots = append(chatbots, b)
	}

	return chatbots, rows.Err()
}

func (c *Client) UpdateChatbot(ctx context.Context, chatbot *models.Chatbot) error {
	greetings, _ := json.Marshal(chatbot.GreetingMessages)
	kb, _ := json.Marshal(chatbot.KnowledgeBase)

	isActive := 0
	if chatbot.IsActive {
		isActive = 1
	}

	query := `
		UPDATE chatbots
		SET website_id = ?, name = ?, greeting_type = ?, greeting_messages = ?,
			knowledge_base = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := c.db.ExecContext(ctx, query,
		chatbot.WebsiteID,
		chatbot.Name,
		chatbot.GreetingType,
		string(greetings),
		string(kb),
		isActive,
		time.Now().Unix(),
		chatbot.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update chatbot: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (c *Client) DeleteChatbot(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM chatbots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chatbot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *Client) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, chatbot_id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		message.ID,
		message.ChatbotID,
		message.SessionID,
		message.Role,
		message.Content,
		message.CreatedAt.UnixNano(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

func (c *Client) ListChatMessages(ctx context.Context, chatbotID, sessionID string) ([]models.ChatMessage, error) {
	query := `
		SELECT id, chatbot_id, session_id, role, content, created_at
		FROM chat_messages
		WHERE chatbot_id = ? AND session_id = ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.QueryContext(ctx, query, chatbotID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var createdAt int64

		err := rows.Scan(&m.ID, &m.ChatbotID, &m.SessionID, &m.Role, &m.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
