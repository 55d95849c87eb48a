package load

import (
	"context"
	"testing"
	"time"

	"bondfeed-etl/internal/columnar"
	"bondfeed-etl/internal/etl"

	"go.uber.org/zap"
)

func TestCleanReusesLoadSession(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	connector := &fakeConnector{session: &fakeSession{}}
	sub := NewCleanSubprocess(connector, zap.NewNop())

	ec := etl.NewContext(nil, time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local))
	ec.SetTargetSession(columnar.Session(session))

	if _, err := sub.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if connector.connects != 0 {
		t.Fatal("clean must reuse the parked session, not reconnect")
	}
	if len(session.scripts) != 1 || session.scripts[0] != columnar.TeardownScript {
		t.Fatalf("scripts = %v, want one teardown", session.scripts)
	}
	if session.closed != 1 {
		t.Fatalf("session closed %d times, want 1", session.closed)
	}
	if !ec.CleanupPerformed() {
		t.Fatal("cleanupPerformed not set")
	}
}

func TestCleanConnectsLazilyWhenLoadNeverRan(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	connector := &fakeConnector{session: session}
	sub := NewCleanSubprocess(connector, zap.NewNop())

	ec := etl.NewContext(nil, time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local))
	if _, err := sub.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if connector.connects != 1 {
		t.Fatalf("connects = %d, want 1", connector.connects)
	}
	if len(session.scripts) != 1 || session.scripts[0] != columnar.TeardownScript {
		t.Fatal("teardown script did not run")
	}
	if session.closed != 1 {
		t.Fatal("lazily opened session must be closed")
	}
	if !ec.CleanupPerformed() {
		t.Fatal("cleanupPerformed not set")
	}
}

func TestCleanTeardownFailureIsCleanError(t *testing.T) {
	t.Parallel()

	session := &fakeSession{failDDL: true}
	sub := NewCleanSubprocess(&fakeConnector{session: session}, zap.NewNop())

	ec := etl.NewContext(nil, time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local))
	ec.SetTargetSession(columnar.Session(session))

	_, err := sub.Execute(context.Background(), ec)
	if !etl.IsKind(err, etl.KindClean) {
		t.Fatalf("expected CleanError, got %v", err)
	}
	if ec.CleanupPerformed() {
		t.Fatal("cleanupPerformed must be false after a failed teardown")
	}
	if session.closed != 1 {
		t.Fatal("session must be closed even when teardown fails")
	}
}

func TestCleanValidateContextAlwaysPasses(t *testing.T) {
	t.Parallel()

	sub := NewCleanSubprocess(&fakeConnector{session: &fakeSession{}}, zap.NewNop())
	ec := etl.NewContext(nil, time.Time{})
	if err := sub.ValidateContext(ec); err != nil {
		t.Fatalf("clean must validate against any context: %v", err)
	}
}
