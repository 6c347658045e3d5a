/*
Package adapters выполняет SQL на нескольких СУБД через единый интерфейс диалекта.

# Архитектура

	┌─────────────────────────────────────────┐
	│    EAV Object Store (pkg/store)         │
	│  - MB_<collection>, MD_<collection>     │
	│  - KV_<name>                            │
	└─────────────────┬───────────────────────┘
	                  │ stmt.Statement
	┌─────────────────▼───────────────────────┐
	│  Conn                                   │  ← pkg/adapters/conn.go
	│    raw:        QueryRaw, ExecRaw        │
	│    normalized: Query, Exec              │
	│                → Dialect.Rewrite        │
	│                → Dialect.SanitizeError  │
	└─────────────────┬───────────────────────┘
	                  │
	   ┌──────────┬───┴──────┬──────────┬──────────┐
	┌──▼───┐  ┌───▼──┐  ┌────▼─┐  ┌─────▼──┐  ┌────▼────┐
	│SQLite│  │MySQL │  │MSSQL │  │Oracle  │  │Postgres │  ← Dialect
	└──────┘  └──────┘  └──────┘  └────────┘  └─────────┘

# Dialect

Диалект не держит соединение. Он:
  - собирает DSN из Config;
  - переписывает SQL (Rewrite): типы, IF NOT EXISTS, LIMIT/OFFSET, плейсхолдеры;
  - строит UPSERT своим способом (INSERT OR REPLACE, ON DUPLICATE KEY, ON CONFLICT, MERGE);
  - отличает безопасные ошибки (повторное создание индекса) от настоящих.

Общие функции перезаписи лежат в pkg/adapters/base.

# Использование

	factory := all.Factory()

	conn, err := factory.Open(ctx, adapters.Config{
	    Type: "sqlite",
	    URL:  "app.db",
	}, adapters.WithLogger(logger), adapters.WithRetry(retry.EnableRetry(5, time.Second)))
	if err != nil {
	    return err
	}
	defer conn.Close()

	if err := conn.CreateTable(ctx, "users", []string{"id", "name"}, []string{"BIGINT", "VARCHAR(64)"}); err != nil {
	    return err
	}

	res, err := conn.Select(ctx, "users", "id, name", "name = ?", []any{"admin"}, "id", 10, 0)

# Ошибки

Все ошибки выполнения - *StoreError с Kind:
  - KindPrecondition: неверные аргументы, закрытое соединение (не повторяется);
  - KindRewrite: ошибка интроспекции или разбиения VIEW;
  - KindExecution: ошибка драйвера.

Повторы (pkg/retry) применяются только к установке соединения.
*/
package adapters
