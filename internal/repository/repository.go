package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

const eventsTable = "events"

// appendLockKey is the transaction-scoped advisory lock every append takes,
// so the head check and the inserts of concurrent writers never interleave.
const appendLockKey int64 = 0x636f6c6c6162

var (
	ErrEventExists = errors.New("event already exists")
	// ErrLogAdvanced means another writer appended after the caller last read
	// the log. The caller must catch up before appending again.
	ErrLogAdvanced = errors.New("event log has advanced")
)

var eventColumns = []string{"seq", "id", "namespace", "event", "room", "sender", "occurred_at", "data"}

// Repository is the append-only event log.
type Repository struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *Repository) RunInTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %v (original err: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// AppendEvents stores envs in one transaction, in order, provided the log
// head is still afterSeq. Nothing is stored when the head moved or any insert
// fails.
func (r *Repository) AppendEvents(ctx context.Context, afterSeq int64, envs []events.Envelope) ([]int64, error) {
	seqs := make([]int64, 0, len(envs))
	err := r.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockKey); err != nil {
			return fmt.Errorf("lock event log: %w", err)
		}

		head, err := r.lastSeq(ctx, tx)
		if err != nil {
			return err
		}
		if head != afterSeq {
			return fmt.Errorf("%w: head is %d, expected %d", ErrLogAdvanced, head, afterSeq)
		}

		for _, env := range envs {
			seq, err := r.insertEvent(ctx, tx, env)
			if err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seqs, nil
}

func (r *Repository) insertEvent(ctx context.Context, tx pgx.Tx, env events.Envelope) (int64, error) {
	query, args, err := r.psql.Insert(eventsTable).
		Columns("id", "namespace", "event", "room", "sender", "occurred_at", "data").
		Values(env.ID, string(env.Namespace), string(env.Event), env.Room, env.Sender, env.At.UTC(), []byte(env.Data)).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert event: %w", err)
	}

	var seq int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrEventExists, env.ID)
		}
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return seq, nil
}

// ListEvents returns up to limit events with seq greater than afterSeq, oldest
// first.
func (r *Repository) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]events.Envelope, error) {
	return r.listEvents(ctx, sq.Gt{"seq": afterSeq}, limit)
}

func (r *Repository) ListRoomEvents(ctx context.Context, room string, afterSeq int64, limit int) ([]events.Envelope, error) {
	return r.listEvents(ctx, sq.And{sq.Eq{"room": room}, sq.Gt{"seq": afterSeq}}, limit)
}

func (r *Repository) LastSeq(ctx context.Context) (int64, error) {
	return r.lastSeq(ctx, r.pool)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) lastSeq(ctx context.Context, q querier) (int64, error) {
	query, args, err := r.psql.Select("COALESCE(MAX(seq), 0)").From(eventsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build last seq: %w", err)
	}

	var seq int64
	if err := q.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("select last seq: %w", err)
	}
	return seq, nil
}

func (r *Repository) listEvents(ctx context.Context, where sq.Sqlizer, limit int) ([]events.Envelope, error) {
	b := r.psql.Select(eventColumns...).
		From(eventsTable).
		Where(where).
		OrderBy("seq")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list events: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	out := make([]events.Envelope, 0)
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return out, nil
}

func scanEnvelope(row pgx.Row) (events.Envelope, error) {
	var (
		env             events.Envelope
		namespace, name string
		occurredAt      time.Time
		data            []byte
	)
	if err := row.Scan(&env.Seq, &env.ID, &namespace, &name, &env.Room, &env.Sender, &occurredAt, &data); err != nil {
		return events.Envelope{}, fmt.Errorf("scan event: %w", err)
	}
	env.Namespace = events.Namespace(namespace)
	env.Event = events.Name(name)
	env.At = occurredAt.UTC()
	env.Data = json.RawMessage(data)
	return env, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
