package storage

import "context"

var schema = []string{
	`create table if not exists messages (
		chat_id    text primary key,
		source     text not null default '',
		sender     text not null default '',
		payload    jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now()
	)`,
	`create index if not exists messages_source_created_at_idx
		on messages (source, created_at desc)`,
	`create table if not exists users (
		id         bigserial primary key,
		uid        text not null default '',
		email      text not null default '',
		payload    jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now()
	)`,
	`create unique index if not exists users_uid_idx on users (uid) where uid <> ''`,
	`create table if not exists presence (
		uid         text primary key,
		online      boolean not null,
		last_online timestamptz
	)`,
}

// Migrate creates the tables and indexes the store relies on. Statements are
// idempotent, so running it on every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Info("Running schema migration")

	for _, sql := range schema {
		if _, err := s.db.Exec(ctx, sql); err != nil {
			return err
		}
	}

	return nil
}
