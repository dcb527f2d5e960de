// README: Notification sink: in-app rows in PostgreSQL plus Expo push delivery, fire-and-forget.
package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"yalla/internal/types"
)

const (
	expoPushURL = "https://exp.host/--/api/v2/push/send"
	pushTimeout = 10 * time.Second
)

// Notification is one in-app inbox row.
type Notification struct {
	ID        types.ID       `json:"id"`
	UserID    types.ID       `json:"user_id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Category  string         `json:"category"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink records notifications and pushes them to the user's devices. Delivery
// is best effort: callers never see an error, failures are logged.
type Sink struct {
	db      *pgxpool.Pool
	client  *http.Client
	pushURL string
	log     *slog.Logger
}

func NewSink(db *pgxpool.Pool, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		db:      db,
		client:  &http.Client{Timeout: pushTimeout},
		pushURL: expoPushURL,
		log:     log,
	}
}

// Notify implements the order module's notifier. The write and the push run
// detached from the request context so an early client disconnect cannot
// drop the notification.
func (s *Sink) Notify(ctx context.Context, userID types.ID, title, body, category string, data map[string]any) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, pushTimeout)
		defer cancel()

		if err := s.insert(ctx, userID, title, body, category, data); err != nil {
			s.log.Error("notification insert failed", "user_id", userID, "err", err)
		}
		s.push(ctx, userID, title, body, data)
	}()
}

func (s *Sink) insert(ctx context.Context, userID types.ID, title, body, category string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, body, category, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, now())`,
		string(newID()), string(userID), title, body, category, data)
	return err
}

type expoMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound"`
	Data  map[string]any `json:"data,omitempty"`
}

func (s *Sink) push(ctx context.Context, userID types.ID, title, body string, data map[string]any) {
	tokens, err := s.tokensFor(ctx, userID)
	if err != nil {
		s.log.Error("push token lookup failed", "user_id", userID, "err", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	msgs := make([]expoMessage, len(tokens))
	for i, tok := range tokens {
		msgs[i] = expoMessage{To: tok, Title: title, Body: body, Sound: "default", Data: data}
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		s.log.Error("push payload marshal failed", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(payload))
	if err != nil {
		s.log.Error("push request build failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("push delivery failed", "user_id", userID, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.log.Warn("push rejected", "user_id", userID, "status", resp.StatusCode)
	}
}

func (s *Sink) tokensFor(ctx context.Context, userID types.ID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT token FROM push_tokens WHERE user_id = $1`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

// ListForUser returns the newest inbox rows for a user.
func (s *Sink) ListForUser(ctx context.Context, userID types.ID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, body, category, data, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		string(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Category, &n.Data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a single notification as seen.
func (s *Sink) MarkRead(ctx context.Context, userID, notificationID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		string(notificationID), string(userID))
	return err
}

// RegisterToken stores a device push token for a user.
func (s *Sink) RegisterToken(ctx context.Context, userID types.ID, token string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO push_tokens (user_id, token, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id`,
		string(userID), token)
	return err
}

// Nop is a sink that drops everything; used in tests and tooling.
type Nop struct{}

func (Nop) Notify(context.Context, types.ID, string, string, string, map[string]any) {}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
