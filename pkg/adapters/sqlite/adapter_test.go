package sqlite

import (
	"context"
	"testing"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

func TestRewrite(t *testing.T) {
	d := New()
	tests := []struct {
		input    string
		expected string
	}{
		{
			"CREATE TABLE IF NOT EXISTS MB_x ( pKy BIGINT PRIMARY KEY AUTOINCREMENT, cTm BIGINT )",
			"CREATE TABLE IF NOT EXISTS MB_x ( pKy INTEGER PRIMARY KEY AUTOINCREMENT, cTm INTEGER )",
		},
		{
			"CREATE TABLE t ( tVl VARCHAR(MAX) )",
			"CREATE TABLE t ( tVl VARCHAR )",
		},
		{
			"TRUNCATE   TABLE  KV_cache",
			"DELETE FROM KV_cache",
		},
		{
			"SELECT * FROM t WHERE note = 'BIGINT  VARCHAR(MAX)'",
			"SELECT * FROM t WHERE note = 'BIGINT  VARCHAR(MAX)'",
		},
	}

	for _, tt := range tests {
		got, err := d.Rewrite(context.Background(), nil, tt.input)
		if err != nil {
			t.Fatalf("Rewrite failed: %v", err)
		}
		if len(got) != 1 || got[0] != tt.expected {
			t.Errorf("Rewrite(%q) = %v, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestDSN(t *testing.T) {
	d := New()

	dsn, err := d.DSN(adapters.Config{URL: ":memory:"})
	if err != nil || dsn != ":memory:" {
		t.Errorf("unexpected dsn %q %v", dsn, err)
	}

	dsn, err = d.DSN(adapters.Config{Database: "app.db", Extra: map[string]string{"_txlock": "immediate"}})
	if err != nil || dsn != "app.db?_txlock=immediate" {
		t.Errorf("unexpected dsn %q %v", dsn, err)
	}

	if _, err := d.DSN(adapters.Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}

func TestUpsert_Generic(t *testing.T) {
	st, err := New().Upsert(stmt.UpsertSpec{
		Table:      "KV_x",
		UniqueCols: []string{"kID"},
		UniqueVals: []any{"a"},
		InsertCols: []string{"kVl"},
		InsertVals: []any{"b"},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if st.SQL != "INSERT OR REPLACE INTO KV_x (kID, kVl) VALUES (?, ?)" {
		t.Errorf("unexpected sql %q", st.SQL)
	}
}

func TestConn_InMemory(t *testing.T) {
	ctx := context.Background()
	conn, err := adapters.Open(ctx, New(), adapters.Config{Type: DialectType, URL: ":memory:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	if err := conn.CreateTable(ctx, "T_items",
		[]string{"pKy", "name", "body"},
		[]string{"BIGINT PRIMARY KEY AUTOINCREMENT", "VARCHAR(64)", "VARCHAR(MAX)"}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := conn.CreateIndex(ctx, "T_items", "name", "UNIQUE", "unq"); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	// повторное создание допустимо
	if err := conn.CreateIndex(ctx, "T_items", "name", "UNIQUE", "unq"); err != nil {
		t.Fatalf("second CreateIndex failed: %v", err)
	}

	for _, name := range []string{"a", "b", "a"} {
		if err := conn.Upsert(ctx, stmt.UpsertSpec{
			Table:      "T_items",
			UniqueCols: []string{"name"},
			UniqueVals: []any{name},
			InsertCols: []string{"body"},
			InsertVals: []any{"body of " + name},
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	n, err := conn.Count(ctx, "T_items", "", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}

	res, err := conn.Select(ctx, "T_items", "NAME, body", "", nil, "name DESC", 1, 0)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.RowCount() != 1 || res.Value(0, "name") != "b" {
		t.Errorf("unexpected result %+v", res)
	}

	if err := conn.Recreate(ctx, false); err != nil {
		t.Fatalf("Recreate without force failed: %v", err)
	}
	if n, _ := conn.Count(ctx, "T_items", "", nil); n != 2 {
		t.Errorf("healthy connection must not be reopened, got %d rows", n)
	}

	// принудительное пересоздание открывает новую :memory: базу
	if err := conn.Recreate(ctx, true); err != nil {
		t.Fatalf("forced Recreate failed: %v", err)
	}
	if _, err := conn.Count(ctx, "T_items", "", nil); err == nil {
		t.Error("expected missing table after forced recreate of in-memory database")
	}
}
