package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "create table",
			input: "CREATE TABLE IF NOT EXISTS MD_x ( pKy BIGINT PRIMARY KEY AUTOINCREMENT, " +
				"idx TINYINT, sVl VARCHAR(64), tVl VARCHAR(MAX) )",
			expected: "CREATE TABLE MD_x ( pKy NUMBER(19) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, " +
				"idx NUMBER(3), sVl VARCHAR2(64), tVl CLOB )",
		},
		{
			name:     "index",
			input:    "CREATE INDEX IF NOT EXISTS MD_x_ksIdx ON MD_x ( kID, sVl )",
			expected: "CREATE INDEX MD_x_ksIdx ON MD_x ( kID, sVl )",
		},
		{
			name:  "drop table",
			input: "DROP TABLE IF EXISTS MB_x",
			expected: "BEGIN EXECUTE IMMEDIATE 'DROP TABLE MB_x'; " +
				"EXCEPTION WHEN OTHERS THEN IF SQLCODE != -942 THEN RAISE; END IF; END;",
		},
		{
			name:     "paging",
			input:    "SELECT oID FROM MB_x WHERE oID > ? ORDER BY oID LIMIT 1",
			expected: "SELECT oID FROM MB_x WHERE oID > ? ORDER BY oID OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Rewrite(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, got)
		})
	}
}

func TestUpsert_MergeFromDual(t *testing.T) {
	st, err := New().Upsert(stmt.UpsertSpec{
		Table:      "KV_x",
		UniqueCols: []string{"kID"},
		UniqueVals: []any{"k"},
		InsertCols: []string{"cTm", "eTm", "kVl"},
		InsertVals: []any{int64(1), int64(0), "v"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"MERGE INTO KV_x target USING (SELECT ? AS kID, ? AS cTm, ? AS eTm, ? AS kVl FROM dual) source "+
			"ON (target.kID = source.kID) "+
			"WHEN MATCHED THEN UPDATE SET target.cTm = source.cTm, target.eTm = source.eTm, target.kVl = source.kVl "+
			"WHEN NOT MATCHED THEN INSERT (kID, cTm, eTm, kVl) VALUES (source.kID, source.cTm, source.eTm, source.kVl)",
		st.SQL)
}

func TestSanitizeError(t *testing.T) {
	d := New()
	exists := errors.New("SQLExecute: {42S01} [Oracle][ODBC][Ora]ORA-00955: name is already used by an existing object")

	assert.True(t, d.SanitizeError("CREATE TABLE IF NOT EXISTS t ( a BIGINT )", "", exists))
	assert.True(t, d.SanitizeError("CREATE UNIQUE INDEX IF NOT EXISTS t_a ON t ( a )", "", exists))
	assert.False(t, d.SanitizeError("CREATE TABLE t ( a BIGINT )", "", exists))
	assert.False(t, d.SanitizeError("CREATE TABLE IF NOT EXISTS t ( a BIGINT )", "",
		errors.New("ORA-00904: invalid identifier")))
}

func TestQuery_UppercaseColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn := adapters.NewConn(New(), db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT oID, kID FROM MD_x WHERE oID = ?").
		WithArgs("o").
		WillReturnRows(sqlmock.NewRows([]string{"OID", "KID"}).AddRow("o", "name"))

	res, err := conn.Select(ctx, "MD_x", "oID, kID", "oID = ?", []any{"o"}, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "name", res.Value(0, "kID"))

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	dsn, err := New().DSN(adapters.Config{URL: "ORCL", User: "app", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "DSN=ORCL;UID=app;PWD=secret", dsn)

	dsn, err = New().DSN(adapters.Config{URL: "DRIVER={Oracle};DBQ=db:1521/XE;", User: "app"})
	require.NoError(t, err)
	assert.Equal(t, "DRIVER={Oracle};DBQ=db:1521/XE;UID=app", dsn)
}
