package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	parsed, err := StringToTime(TimeToString(now))
	if err != nil {
		t.Fatalf("StringToTime() failed: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("Expected %v, got %v", now, parsed)
	}
}

func TestTimeToStringSortsChronologically(t *testing.T) {
	whole := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fraction := whole.Add(500 * time.Millisecond)

	if TimeToString(whole) >= TimeToString(fraction) {
		t.Errorf("Expected %s < %s", TimeToString(whole), TimeToString(fraction))
	}
}

func TestBoolConversions(t *testing.T) {
	if BoolToInt(true) != 1 || BoolToInt(false) != 0 {
		t.Error("BoolToInt returned unexpected values")
	}
	if !IntToBool(1) || IntToBool(0) {
		t.Error("IntToBool returned unexpected values")
	}
}

func TestNullableStrings(t *testing.T) {
	if ns := StringPtrToNull(nil); ns.Valid {
		t.Error("nil pointer should map to NULL")
	}

	value := "ciphertext"
	ns := StringPtrToNull(&value)
	if !ns.Valid || ns.String != value {
		t.Errorf("Expected valid %q, got %+v", value, ns)
	}

	back := NullToStringPtr(ns)
	if back == nil || *back != value {
		t.Errorf("Expected %q back, got %v", value, back)
	}

	empty := ""
	if NullToStringPtr(StringPtrToNull(&empty)) != nil {
		t.Error("empty string should read back as absent")
	}
}

func TestOpenSQLite(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected WAL journal mode, got %s", mode)
	}
}

func TestNewInMemoryDB(t *testing.T) {
	conn, err := NewInMemoryDB()
	if err != nil {
		t.Fatalf("NewInMemoryDB() failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec("CREATE TABLE t (id TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := conn.Exec("INSERT INTO t VALUES ('a')"); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
}
