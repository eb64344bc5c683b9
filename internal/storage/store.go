package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Mejerab/Unoo-Chats-Server/internal/storage/zapadapter"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrMessageExists = errors.New("message already exists")
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotExist  = errors.New("user does not exist")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// InsertMessage durably writes a freshly appended message.
func (s *Store) InsertMessage(ctx context.Context, m Message) error {
	s.logger.Debugf("Inserting message %s into source (%s)", m.ChatID, m.Source)

	payload, err := payloadJSONB(m.Payload)
	if err != nil {
		return err
	}

	sql := "insert into messages (chat_id, source, sender, payload, created_at) values ($1, $2, $3, $4, $5)"
	_, err = s.db.Exec(ctx, sql, m.ChatID, m.Source, m.Sender, payload, m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return ErrMessageExists
			}
		}
		return err
	}

	return nil
}

// MessagesBySource returns at most limit messages for the source, newest
// first. Callers wanting chronological order reverse the slice.
func (s *Store) MessagesBySource(ctx context.Context, source string, limit int) ([]Message, error) {
	s.logger.Debugf("Retrieving up to %d messages for source (%s)", limit, source)

	sql := `select chat_id, source, sender, payload, created_at
			  from messages
			 where source = $1
			 order by created_at desc, chat_id desc
			 limit $2`

	rows, err := s.db.Query(ctx, sql, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// AllMessages returns every stored message in insertion order.
func (s *Store) AllMessages(ctx context.Context) ([]Message, error) {
	s.logger.Debug("Retrieving all messages")

	sql := "select chat_id, source, sender, payload, created_at from messages order by created_at asc, chat_id asc"

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// PatchMessage merges fields into the message addressed by chatID, creating
// the record when it does not exist yet. Unknown fields land in the payload
// document via jsonb concatenation, so untouched fields survive the patch.
func (s *Store) PatchMessage(ctx context.Context, chatID string, fields map[string]interface{}) error {
	s.logger.Debugf("Patching message %s", chatID)

	var source, sender string
	rest := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case "chat_id":
		case "source":
			source, _ = v.(string)
		case "sender":
			sender, _ = v.(string)
		default:
			rest[k] = v
		}
	}

	payload, err := payloadJSONB(rest)
	if err != nil {
		return err
	}

	sql := `insert into messages (chat_id, source, sender, payload, created_at)
			values ($1, $2, $3, $4, $5)
			on conflict (chat_id) do update
			set source  = case when excluded.source  <> '' then excluded.source  else messages.source  end,
				sender  = case when excluded.sender  <> '' then excluded.sender  else messages.sender  end,
				payload = messages.payload || excluded.payload`

	_, err = s.db.Exec(ctx, sql, chatID, source, sender, payload, time.Now())
	return err
}

// DeleteAllMessages removes every message for every source and reports how
// many rows were dropped. Administrative reset, access-gated at the HTTP layer.
func (s *Store) DeleteAllMessages(ctx context.Context) (int64, error) {
	s.logger.Info("Deleting all messages")

	tag, err := s.db.Exec(ctx, "delete from messages")
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// UpsertPresence writes the user's online state, creating the record on the
// user's first connection. lastOnline must be nil while online is true.
func (s *Store) UpsertPresence(ctx context.Context, uid string, online bool, lastOnline *time.Time) error {
	s.logger.Debugf("Upserting presence for uid (%s): online=%t", uid, online)

	sql := `insert into presence (uid, online, last_online)
			values ($1, $2, $3)
			on conflict (uid) do update
			set online = excluded.online, last_online = excluded.last_online`

	_, err := s.db.Exec(ctx, sql, uid, online, lastOnline)
	return err
}

// PresenceByUID returns the stored presence record for the uid.
func (s *Store) PresenceByUID(ctx context.Context, uid string) (PresenceRecord, error) {
	var (
		rec        PresenceRecord
		lastOnline pgtype.Timestamptz
	)

	sql := "select uid, online, last_online from presence where uid = $1"
	err := s.db.QueryRow(ctx, sql, uid).Scan(&rec.UID, &rec.Online, &lastOnline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PresenceRecord{}, ErrUserNotExist
		}
		return PresenceRecord{}, err
	}

	if lastOnline.Status == pgtype.Present {
		t := lastOnline.Time
		rec.LastOnline = &t
	}

	return rec, nil
}

// CreateUser creates a profile from raw client fields and returns its id.
func (s *Store) CreateUser(ctx context.Context, fields map[string]interface{}) (int64, error) {
	var uid, email string
	rest := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case "uid":
			uid, _ = v.(string)
		case "email":
			email, _ = v.(string)
		default:
			rest[k] = v
		}
	}

	s.logger.Debugf("Creating user (uid: %s, email: %s)", uid, email)

	payload, err := payloadJSONB(rest)
	if err != nil {
		return 0, err
	}

	var id int64
	sql := "insert into users (uid, email, payload, created_at) values ($1, $2, $3, $4) returning id"
	err = s.db.QueryRow(ctx, sql, uid, email, payload, time.Now()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return 0, ErrUserExists
			}
		}
		return 0, err
	}

	s.logger.Debugf("Created user (uid: %s) with id %d", uid, id)

	return id, nil
}

const userColumns = `users.id, users.uid, users.email, users.payload, users.created_at,
					 presence.online, presence.last_online`

const userFrom = "from users left join presence on presence.uid = users.uid"

// AllUsers returns every profile with presence merged in where known.
func (s *Store) AllUsers(ctx context.Context) ([]User, error) {
	s.logger.Debug("Retrieving all users")

	rows, err := s.db.Query(ctx, "select "+userColumns+" "+userFrom+" order by users.id asc")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

// UserByUID returns the profile with the given uid.
func (s *Store) UserByUID(ctx context.Context, uid string) (User, error) {
	return s.userBy(ctx, "where users.uid = $1", uid)
}

// UserByID returns the profile with the given row id.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	return s.userBy(ctx, "where users.id = $1", id)
}

// UserByEmail returns the profile with the given email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.userBy(ctx, "where users.email = $1", email)
}

func (s *Store) userBy(ctx context.Context, where string, arg interface{}) (User, error) {
	row := s.db.QueryRow(ctx, "select "+userColumns+" "+userFrom+" "+where, arg)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// PatchUser merges fields into the profile addressed by row id, creating the
// record when missing. Same merge shape as PatchMessage.
func (s *Store) PatchUser(ctx context.Context, id int64, fields map[string]interface{}) error {
	s.logger.Debugf("Patching user %d", id)

	var uid, email string
	rest := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case "id":
		case "uid":
			uid, _ = v.(string)
		case "email":
			email, _ = v.(string)
		default:
			rest[k] = v
		}
	}

	payload, err := payloadJSONB(rest)
	if err != nil {
		return err
	}

	sql := `insert into users (id, uid, email, payload, created_at)
			values ($1, $2, $3, $4, $5)
			on conflict (id) do update
			set uid     = case when excluded.uid   <> '' then excluded.uid   else users.uid   end,
				email   = case when excluded.email <> '' then excluded.email else users.email end,
				payload = users.payload || excluded.payload`

	_, err = s.db.Exec(ctx, sql, id, uid, email, payload, time.Now())
	return err
}

func payloadJSONB(fields map[string]interface{}) (*pgtype.JSONB, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return &pgtype.JSONB{Bytes: b, Status: pgtype.Present}, nil
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var (
			m       Message
			payload pgtype.JSONB
		)
		if err := rows.Scan(&m.ChatID, &m.Source, &m.Sender, &payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload.Bytes, &m.Payload); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u          User
		payload    pgtype.JSONB
		online     pgtype.Bool
		lastOnline pgtype.Timestamptz
	)

	err := row.Scan(&u.ID, &u.UID, &u.Email, &payload, &u.CreatedAt, &online, &lastOnline)
	if err != nil {
		return User{}, err
	}

	if err := json.Unmarshal(payload.Bytes, &u.Payload); err != nil {
		return User{}, err
	}

	if online.Status == pgtype.Present {
		rec := &PresenceRecord{UID: u.UID, Online: online.Bool}
		if lastOnline.Status == pgtype.Present {
			t := lastOnline.Time
			rec.LastOnline = &t
		}
		u.Presence = rec
	}

	return u, nil
}
