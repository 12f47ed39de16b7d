package state

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIncrement_FromMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for want := 1; want <= 3; want++ {
		got, err := Increment(ctx, s, KeyWelcomeChatShowCount)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Errorf("Increment = %d, want %d", got, want)
		}
	}

	if v := TryGetInt(ctx, s, KeyWelcomeChatShowCount, 0); v != 3 {
		t.Errorf("TryGetInt = %d, want 3", v)
	}
}

func TestTryGetInt_Fallbacks(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if v := TryGetInt(ctx, s, "missing", 7); v != 7 {
		t.Errorf("missing key = %d, want default 7", v)
	}

	s.Set(ctx, "wrong-type", []byte(`"not a number"`))
	if v := TryGetInt(ctx, s, "wrong-type", 7); v != 7 {
		t.Errorf("wrong type = %d, want default 7", v)
	}
}

// fakeRow and fakeQuerier stand in for a pgx pool.
type fakeRow struct {
	value []byte
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.value
	return nil
}

type fakeQuerier struct {
	rows    map[string][]byte
	lastSQL string
	execErr error
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	v, ok := q.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.lastSQL = sql
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	q.rows[args[0].(string)] = args[1].([]byte)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgres_GetSet(t *testing.T) {
	ctx := context.Background()
	db := &fakeQuerier{rows: make(map[string][]byte)}
	s := NewPostgres(db)

	if _, err := s.Get(ctx, KeyWelcomeChatShowCount); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	if _, err := Increment(ctx, s, KeyWelcomeChatShowCount); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if string(db.rows[KeyWelcomeChatShowCount]) != "1" {
		t.Errorf("stored value = %q, want 1", db.rows[KeyWelcomeChatShowCount])
	}
	if !strings.Contains(db.lastSQL, "ON CONFLICT (key)") {
		t.Errorf("Set should upsert, got SQL %q", db.lastSQL)
	}
}

func TestPostgres_SetError(t *testing.T) {
	db := &fakeQuerier{rows: make(map[string][]byte), execErr: errors.New("connection refused")}
	s := NewPostgres(db)

	_, err := Increment(context.Background(), s, KeyWelcomeChatShowCount)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Increment error = %v, want wrapped connection refused", err)
	}
}
