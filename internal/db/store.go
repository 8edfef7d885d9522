package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractline/backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnsureSchema creates the caller directory and call state tables if they do
// not exist yet. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS caller_directory (
			phone TEXT PRIMARY KEY,
			business_name TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			contact_method TEXT NOT NULL DEFAULT '',
			license_number TEXT NOT NULL DEFAULT '',
			is_repeat BOOLEAN NOT NULL DEFAULT FALSE,
			last_contact TEXT NOT NULL DEFAULT '',
			created_date TEXT NOT NULL DEFAULT '',
			call_count INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS call_states (
			call_sid TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			turn_count INT NOT NULL DEFAULT 0,
			history JSONB NOT NULL DEFAULT '[]',
			fields JSONB NOT NULL DEFAULT '{}',
			caller JSONB,
			is_returning BOOLEAN NOT NULL DEFAULT FALSE,
			match_type TEXT NOT NULL DEFAULT 'no_match',
			previous_phone TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

const callerColumns = `phone, business_name, contact_email, contact_method, license_number, is_repeat, last_contact, created_date, call_count`

func scanCaller(row pgx.Row) (models.CallerRecord, error) {
	var c models.CallerRecord
	err := row.Scan(&c.Phone, &c.BusinessName, &c.ContactEmail, &c.ContactMethod, &c.LicenseNumber, &c.IsRepeat, &c.LastContact, &c.CreatedDate, &c.CallCount)
	return c, err
}

// LookupCandidates returns directory rows for the two-tier matcher. When
// includeAll is true the whole directory is returned so identity matching can
// run; otherwise only rows whose phone matches one of the variants.
func (s *Store) LookupCandidates(ctx context.Context, variants []string, includeAll bool) ([]models.CallerRecord, error) {
	query := `SELECT ` + callerColumns + ` FROM caller_directory`
	var args []any
	if !includeAll {
		args = append(args, variants)
		query += ` WHERE phone = ANY($1)`
	}
	query += ` ORDER BY phone ASC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CallerRecord
	for rows.Next() {
		c, err := scanCaller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCaller(ctx context.Context, phone string) (models.CallerRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+callerColumns+` FROM caller_directory WHERE phone = $1`, phone)
	c, err := scanCaller(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (s *Store) ListCallers(ctx context.Context, repeatOnly bool, contactMethod string, limit, offset int) ([]models.CallerRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + callerColumns + ` FROM caller_directory`
	var args []any
	var wheres []string
	if repeatOnly {
		wheres = append(wheres, "is_repeat = TRUE")
	}
	if contactMethod != "" {
		args = append(args, contactMethod)
		wheres = append(wheres, fmt.Sprintf("contact_method = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY last_contact DESC, phone ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CallerRecord
	for rows.Next() {
		c, err := scanCaller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApplyMutation executes a planned directory write. INSERT upserts on phone so
// replayed webhooks stay idempotent; UPDATE rewrites the row found under the
// intent's search key, which also carries phone migrations.
func (s *Store) ApplyMutation(ctx context.Context, intent models.MutationIntent) error {
	r := intent.Record
	switch intent.Op {
	case models.MutationInsert:
		_, err := s.Pool.Exec(ctx, `
			INSERT INTO caller_directory (`+callerColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (phone) DO UPDATE SET
				business_name = EXCLUDED.business_name,
				contact_email = EXCLUDED.contact_email,
				contact_method = EXCLUDED.contact_method,
				license_number = EXCLUDED.license_number,
				is_repeat = EXCLUDED.is_repeat,
				last_contact = EXCLUDED.last_contact,
				call_count = EXCLUDED.call_count
		`, r.Phone, r.BusinessName, r.ContactEmail, r.ContactMethod, r.LicenseNumber, r.IsRepeat, r.LastContact, r.CreatedDate, r.CallCount)
		return err
	case models.MutationUpdate:
		tag, err := s.Pool.Exec(ctx, `
			UPDATE caller_directory SET
				phone = $1,
				business_name = $2,
				contact_email = $3,
				contact_method = $4,
				license_number = $5,
				is_repeat = $6,
				last_contact = $7,
				created_date = $8,
				call_count = $9
			WHERE phone = $10
		`, r.Phone, r.BusinessName, r.ContactEmail, r.ContactMethod, r.LicenseNumber, r.IsRepeat, r.LastContact, r.CreatedDate, r.CallCount, intent.SearchKey)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation op %q", intent.Op)
	}
}

// BulkInsertCallers loads directory rows in one round trip, used by the admin
// bootstrap endpoint.
func (s *Store) BulkInsertCallers(ctx context.Context, callers []models.CallerRecord) (int64, error) {
	rows := make([][]any, 0, len(callers))
	for _, c := range callers {
		rows = append(rows, []any{c.Phone, c.BusinessName, c.ContactEmail, c.ContactMethod, c.LicenseNumber, c.IsRepeat, c.LastContact, c.CreatedDate, c.CallCount})
	}
	copyCount, err := s.Pool.CopyFrom(ctx, pgx.Identifier{"caller_directory"},
		[]string{"phone", "business_name", "contact_email", "contact_method", "license_number", "is_repeat", "last_contact", "created_date", "call_count"},
		pgx.CopyFromRows(rows))
	return copyCount, err
}

func (s *Store) GetCallState(ctx context.Context, callSid string) (models.TurnState, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT call_sid, state, turn_count, history, fields, caller, is_returning, match_type, previous_phone
		FROM call_states WHERE call_sid = $1
	`, callSid)

	var (
		st         models.TurnState
		state      string
		matchType  string
		historyRaw []byte
		fieldsRaw  []byte
		callerRaw  []byte
	)
	err := row.Scan(&st.CallSid, &state, &st.TurnCount, &historyRaw, &fieldsRaw, &callerRaw, &st.IsReturning, &matchType, &st.PreviousPhone)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.State = models.ConversationState(state)
	st.MatchType = models.MatchType(matchType)
	if err := json.Unmarshal(historyRaw, &st.History); err != nil {
		return st, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(fieldsRaw, &st.Fields); err != nil {
		return st, fmt.Errorf("decode fields: %w", err)
	}
	if len(callerRaw) > 0 {
		var caller models.CallerRecord
		if err := json.Unmarshal(callerRaw, &caller); err != nil {
			return st, fmt.Errorf("decode caller: %w", err)
		}
		st.Caller = &caller
	}
	return st, nil
}

func (s *Store) SaveCallState(ctx context.Context, st models.TurnState) error {
	historyRaw, err := json.Marshal(st.History)
	if err != nil {
		return err
	}
	fieldsRaw, err := json.Marshal(st.Fields)
	if err != nil {
		return err
	}
	var callerRaw []byte
	if st.Caller != nil {
		if callerRaw, err = json.Marshal(st.Caller); err != nil {
			return err
		}
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO call_states (call_sid, state, turn_count, history, fields, caller, is_returning, match_type, previous_phone, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		ON CONFLICT (call_sid) DO UPDATE SET
			state = EXCLUDED.state,
			turn_count = EXCLUDED.turn_count,
			history = EXCLUDED.history,
			fields = EXCLUDED.fields,
			caller = EXCLUDED.caller,
			is_returning = EXCLUDED.is_returning,
			match_type = EXCLUDED.match_type,
			previous_phone = EXCLUDED.previous_phone,
			updated_at = NOW()
	`, st.CallSid, string(st.State), st.TurnCount, historyRaw, fieldsRaw, callerRaw, st.IsReturning, string(st.MatchType), st.PreviousPhone)
	return err
}

func (s *Store) DeleteCallState(ctx context.Context, callSid string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM call_states WHERE call_sid = $1`, callSid)
	return err
}
