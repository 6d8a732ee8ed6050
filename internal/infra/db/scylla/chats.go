package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gocql/gocql"

	domainchat "autoparc/internal/domain/chat"
)

var ErrChatExists = errors.New("scylla: a chat already links these participants to the listing")

// ChatRepository stores chats, messages and read markers. Lookup tables keyed
// by user and by listing replace secondary indexes. Timestamps are kept at
// millisecond precision.
type ChatRepository struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewChatRepository(session *gocql.Session, logger *slog.Logger) *ChatRepository {
	return &ChatRepository{session: session, logger: logger}
}

const chatColumns = `id, listing_id, participants, created_at, last_message_at, last_message_id, last_sender_id, last_message_text`

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	var row chatRow
	err := r.session.
		Query(`SELECT `+chatColumns+` FROM chats WHERE id = ? LIMIT 1`, string(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(row.dest()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, domainchat.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *ChatRepository) FindByListing(ctx context.Context, listingID string, participants [2]string) (*domainchat.Chat, error) {
	var chatID string
	err := r.session.
		Query(`SELECT chat_id FROM chats_by_listing WHERE listing_id = ? AND participants_key = ?`, listingID, participantsKey(participants)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&chatID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, domainchat.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.ByID(ctx, domainchat.ID(chatID))
}

// Create claims the (listing, participants) slot with a lightweight
// transaction before writing the chat, so two first contacts cannot both win.
func (r *ChatRepository) Create(ctx context.Context, c *domainchat.Chat) error {
	if c == nil || c.ID == "" {
		return domainchat.ErrIDRequired
	}
	existing := map[string]any{}
	applied, err := r.session.
		Query(`INSERT INTO chats_by_listing (listing_id, participants_key, chat_id) VALUES (?, ?, ?) IF NOT EXISTS`,
			c.ListingID, participantsKey(c.Participants), string(c.ID)).
		WithContext(ctx).
		MapScanCAS(existing)
	if err != nil {
		return err
	}
	if !applied {
		return ErrChatExists
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.ListingID, c.Participants[:], millis(c.CreatedAt), millis(c.LastMessageAt),
		string(c.LastMessageID), c.LastSenderID, c.LastMessageText)
	for _, p := range c.Participants {
		batch.Query(`INSERT INTO chats_by_user (user_id, chat_id) VALUES (?, ?)`, p, string(c.ID))
	}
	return r.session.ExecuteBatch(batch)
}

func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]*domainchat.Chat, error) {
	iter := r.session.
		Query(`SELECT chat_id FROM chats_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var (
		ids    []string
		chatID string
	)
	for iter.Scan(&chatID) {
		ids = append(ids, chatID)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	out := make([]*domainchat.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := r.ByID(ctx, domainchat.ID(id))
		if errors.Is(err, domainchat.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortByActivity(out)
	return out, nil
}

// AddMessage writes the message, then moves the preview only when the stored
// one is not newer.
func (r *ChatRepository) AddMessage(ctx context.Context, msg *domainchat.Message) error {
	if msg == nil || msg.ID == "" {
		return domainchat.ErrIDRequired
	}
	c, err := r.ByID(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	at := millis(msg.CreatedAt)
	if err := r.session.
		Query(`INSERT INTO messages (chat_id, created_at, message_id, sender_id, text, client_id) VALUES (?, ?, ?, ?, ?, ?)`,
			string(msg.ChatID), at, string(msg.ID), msg.SenderID, msg.Text, msg.ClientID).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}
	c.RecordMessage(msg)
	if c.LastMessageID != msg.ID {
		return nil
	}
	current := map[string]any{}
	applied, err := r.session.
		Query(`UPDATE chats SET last_message_at = ?, last_message_id = ?, last_sender_id = ?, last_message_text = ? WHERE id = ? IF last_message_at <= ?`,
			at, string(msg.ID), msg.SenderID, c.LastMessageText, string(msg.ChatID), at).
		WithContext(ctx).
		MapScanCAS(current)
	if err != nil {
		return err
	}
	if !applied && r.logger != nil {
		r.logger.Debug("chat preview kept newer message", "chat_id", msg.ChatID, "message_id", msg.ID)
	}
	return nil
}

// ListMessages pages newest first on disk and returns the page oldest first.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID domainchat.ID, limit int, before time.Time) ([]*domainchat.Message, error) {
	if _, err := r.ByID(ctx, chatID); err != nil {
		return nil, err
	}
	limit = domainchat.ClampLimit(limit)
	var q *gocql.Query
	if before.IsZero() {
		q = r.session.Query(`SELECT message_id, sender_id, text, client_id, created_at FROM messages WHERE chat_id = ? LIMIT ?`,
			string(chatID), limit)
	} else {
		q = r.session.Query(`SELECT message_id, sender_id, text, client_id, created_at FROM messages WHERE chat_id = ? AND created_at < ? LIMIT ?`,
			string(chatID), millis(before), limit)
	}
	iter := q.WithContext(ctx).Consistency(gocql.One).Iter()
	var (
		out       []*domainchat.Message
		id        string
		sender    string
		text      string
		clientID  string
		createdAt time.Time
	)
	for iter.Scan(&id, &sender, &text, &clientID, &createdAt) {
		out = append(out, &domainchat.Message{
			ID:        domainchat.MessageID(id),
			ChatID:    chatID,
			SenderID:  sender,
			Text:      text,
			ClientID:  clientID,
			CreatedAt: createdAt.UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// MarkRead never moves a marker backwards: the conditional update only
// applies when the stored marker is older.
func (r *ChatRepository) MarkRead(ctx context.Context, chatID domainchat.ID, userID string, at time.Time) error {
	c, err := r.ByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.HasParticipant(userID) {
		return domainchat.ErrNotParticipant
	}
	at = millis(at)
	existing := map[string]any{}
	applied, err := r.session.
		Query(`INSERT INTO chat_reads (chat_id, user_id, last_read_at) VALUES (?, ?, ?) IF NOT EXISTS`, string(chatID), userID, at).
		WithContext(ctx).
		MapScanCAS(existing)
	if err != nil || applied {
		return err
	}
	_, err = r.session.
		Query(`UPDATE chat_reads SET last_read_at = ? WHERE chat_id = ? AND user_id = ? IF last_read_at < ?`, at, string(chatID), userID, at).
		WithContext(ctx).
		MapScanCAS(map[string]any{})
	return err
}

func (r *ChatRepository) ReadMarker(ctx context.Context, chatID domainchat.ID, userID string) (domainchat.ReadMarker, bool, error) {
	marker := domainchat.ReadMarker{ChatID: chatID, UserID: userID}
	var at time.Time
	err := r.session.
		Query(`SELECT last_read_at FROM chat_reads WHERE chat_id = ? AND user_id = ?`, string(chatID), userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&at)
	if errors.Is(err, gocql.ErrNotFound) {
		return marker, false, nil
	}
	if err != nil {
		return marker, false, err
	}
	marker.LastReadAt = at.UTC()
	return marker, true, nil
}

// UnreadCount scans messages newer than the marker and skips the user's own.
func (r *ChatRepository) UnreadCount(ctx context.Context, chatID domainchat.ID, userID string) (int, error) {
	marker, found, err := r.ReadMarker(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	var q *gocql.Query
	if found {
		q = r.session.Query(`SELECT sender_id FROM messages WHERE chat_id = ? AND created_at > ?`, string(chatID), marker.LastReadAt)
	} else {
		q = r.session.Query(`SELECT sender_id FROM messages WHERE chat_id = ?`, string(chatID))
	}
	iter := q.WithContext(ctx).Consistency(gocql.One).PageSize(500).Iter()
	var (
		count  int
		sender string
	)
	for iter.Scan(&sender) {
		if sender != userID {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

type chatRow struct {
	id           string
	listingID    string
	participants []string
	createdAt    time.Time
	lastAt       time.Time
	lastID       string
	lastSender   string
	lastText     string
}

func (r *chatRow) dest() []any {
	return []any{&r.id, &r.listingID, &r.participants, &r.createdAt, &r.lastAt, &r.lastID, &r.lastSender, &r.lastText}
}

func (r chatRow) toDomain() *domainchat.Chat {
	c := &domainchat.Chat{
		ID:              domainchat.ID(r.id),
		ListingID:       r.listingID,
		CreatedAt:       r.createdAt.UTC(),
		LastMessageAt:   r.lastAt.UTC(),
		LastMessageID:   domainchat.MessageID(r.lastID),
		LastSenderID:    r.lastSender,
		LastMessageText: r.lastText,
	}
	copy(c.Participants[:], r.participants)
	return c
}

func participantsKey(p [2]string) string {
	return p[0] + "|" + p[1]
}

func millis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func sortByActivity(chats []*domainchat.Chat) {
	sort.Slice(chats, func(i, j int) bool {
		ai, aj := chats[i].LastActivity(), chats[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return chats[i].ID < chats[j].ID
	})
}

func reverse(msgs []*domainchat.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

var _ domainchat.Repository = (*ChatRepository)(nil)
