package chatlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

// mockExecer records executed statements.
type mockExecer struct {
	statements []string
	args       [][]any
	err        error
	failFirst  bool
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.statements = append(m.statements, sql)
	m.args = append(m.args, args)
	if m.err != nil {
		if !m.failFirst || len(m.statements) == 1 {
			return pgconn.CommandTag{}, m.err
		}
	}
	return pgconn.CommandTag{}, nil
}

func TestAppendExchange_CreatesTableThenUpserts(t *testing.T) {
	db := &mockExecer{}
	sink := NewSink(db, "chat_logs", time.Second, log.NewNop())

	err := sink.AppendExchange(context.Background(), 42, "A -> B", "q", "a")
	if err != nil {
		t.Fatalf("AppendExchange: %v", err)
	}

	if len(db.statements) != 2 {
		t.Fatalf("expected DDL + upsert, got %d statements", len(db.statements))
	}
	if !strings.Contains(db.statements[0], "CREATE TABLE IF NOT EXISTS chat_logs") {
		t.Errorf("first statement should create table, got %q", db.statements[0])
	}
	if !strings.Contains(db.statements[1], "ON CONFLICT (session) DO UPDATE") {
		t.Errorf("second statement should upsert, got %q", db.statements[1])
	}
	wantArgs := []any{int64(42), "A -> B", "q", "a"}
	for i, want := range wantArgs {
		if db.args[1][i] != want {
			t.Errorf("upsert arg %d = %v, want %v", i, db.args[1][i], want)
		}
	}
}

func TestAppendExchange_EnsuresTableOnce(t *testing.T) {
	db := &mockExecer{}
	sink := NewSink(db, "chat_logs", time.Second, log.NewNop())

	for range 3 {
		if err := sink.AppendExchange(context.Background(), 1, "", "q", "a"); err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
	}

	// 1 DDL + 3 upserts.
	if len(db.statements) != 4 {
		t.Errorf("expected table creation exactly once, got %d statements", len(db.statements))
	}
}

func TestAppendExchange_WriteFailureSurfaces(t *testing.T) {
	db := &mockExecer{err: errors.New("connection refused")}
	sink := NewSink(db, "chat_logs", time.Second, log.NewNop())

	if err := sink.AppendExchange(context.Background(), 1, "", "q", "a"); err == nil {
		t.Fatal("expected error from failed write")
	}
}
