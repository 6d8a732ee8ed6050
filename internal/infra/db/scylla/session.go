package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Options struct {
	Hosts             []string
	Keyspace          string
	Timeout           time.Duration
	Consistency       gocql.Consistency
	Username          string
	Password          string
	ReplicationFactor int
}

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(ctx context.Context, opts Options, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(opts.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", opts.Keyspace)
	}
	if opts.Consistency == 0 {
		opts.Consistency = gocql.Quorum
	}
	if opts.ReplicationFactor <= 0 {
		opts.ReplicationFactor = 1
	}

	baseSession, err := newCluster(opts, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()
	if err := ensureKeyspace(ctx, baseSession, opts); err != nil {
		return nil, err
	}

	session, err := newCluster(opts, opts.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", opts.Keyspace, err)
	}
	if err := ensureTables(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	}
	return session, nil
}

func newCluster(opts Options, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = opts.Consistency
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
		cluster.ConnectTimeout = opts.Timeout
	}
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
	}
	return cluster
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, opts Options) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		opts.Keyspace, opts.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

var schema = []struct {
	name string
	cql  string
}{
	{"chats", `CREATE TABLE IF NOT EXISTS chats (
	id text PRIMARY KEY,
	listing_id text,
	participants list<text>,
	created_at timestamp,
	last_message_at timestamp,
	last_message_id text,
	last_sender_id text,
	last_message_text text
)`},
	{"chats_by_user", `CREATE TABLE IF NOT EXISTS chats_by_user (
	user_id text,
	chat_id text,
	PRIMARY KEY (user_id, chat_id)
)`},
	{"chats_by_listing", `CREATE TABLE IF NOT EXISTS chats_by_listing (
	listing_id text,
	participants_key text,
	chat_id text,
	PRIMARY KEY (listing_id, participants_key)
)`},
	{"messages", `CREATE TABLE IF NOT EXISTS messages (
	chat_id text,
	created_at timestamp,
	message_id text,
	sender_id text,
	text text,
	client_id text,
	PRIMARY KEY (chat_id, created_at, message_id)
) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC)`},
	{"chat_reads", `CREATE TABLE IF NOT EXISTS chat_reads (
	chat_id text,
	user_id text,
	last_read_at timestamp,
	PRIMARY KEY (chat_id, user_id)
)`},
}

func ensureTables(ctx context.Context, session *gocql.Session) error {
	for _, table := range schema {
		if err := session.Query(table.cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}
	return nil
}
