package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
)

// KeyValueTablePrefix - префикс таблицы KeyValueMap
const KeyValueTablePrefix = "KV_"

var (
	kvColumns = []string{colPKey, colCreated, colExpire, colKID, "kVl"}
	kvTypes   = []string{"BIGINT PRIMARY KEY AUTOINCREMENT", "BIGINT", "BIGINT", "VARCHAR(64)", "VARCHAR(MAX)"}
)

// KeyValueMap - строковый словарь с временем жизни в таблице KV_<name>
// Время в секундах unix; eTm = 0 - без срока
type KeyValueMap struct {
	conn   *adapters.Conn
	name   string
	table  string
	logger zerolog.Logger
	clock  func() time.Time
}

// NewKeyValueMap создает словарь; таблица создается SystemSetup
// Из опций используются WithLogger и WithClock
func NewKeyValueMap(conn *adapters.Conn, name string, opts ...Option) (*KeyValueMap, error) {
	if conn == nil {
		return nil, illegal("new", "connection is required")
	}
	if !collectionName.MatchString(name) {
		return nil, illegal("new", "invalid map name %q", name)
	}

	// опции Store применяются к временному Store, чтобы не дублировать их набор
	tmp := &Store{logger: zerolog.Nop(), clock: time.Now}
	for _, opt := range opts {
		opt(tmp)
	}

	return &KeyValueMap{
		conn:   conn,
		name:   name,
		table:  KeyValueTablePrefix + name,
		logger: tmp.logger.With().Str("kvmap", name).Logger(),
		clock:  tmp.clock,
	}, nil
}

// Table возвращает имя таблицы
func (m *KeyValueMap) Table() string { return m.table }

// SystemSetup создает таблицу и индексы
func (m *KeyValueMap) SystemSetup(ctx context.Context) error {
	if err := m.conn.CreateTable(ctx, m.table, kvColumns, kvTypes); err != nil {
		return fmt.Errorf("failed to create %s: %w", m.table, err)
	}
	if err := m.conn.CreateIndex(ctx, m.table, colKID, "UNIQUE", "unq"); err != nil {
		return fmt.Errorf("failed to create %s unique index: %w", m.table, err)
	}
	// индекс по значению: MS SQL и Oracle не индексируют VARCHAR(MAX)/CLOB
	if err := m.conn.CreateIndex(ctx, m.table, "kVl", "", "valMap"); err != nil {
		m.logger.Warn().Err(err).Msg("value index not created")
	}
	return nil
}

// SystemDestroy удаляет таблицу
func (m *KeyValueMap) SystemDestroy(ctx context.Context) error {
	return m.conn.DropTable(ctx, m.table)
}

// Clear удаляет все записи
func (m *KeyValueMap) Clear(ctx context.Context) error {
	_, err := m.conn.Delete(ctx, m.table, "", nil)
	return err
}

// Put записывает значение; expireAt - время истечения в секундах unix, 0 - без срока
func (m *KeyValueMap) Put(ctx context.Context, key, val string, expireAt int64) error {
	if key == "" || len(key) > MaxKeyLength {
		return illegal("kv put", "key %q must be 1..%d characters", key, MaxKeyLength)
	}
	return m.conn.Upsert(ctx, stmt.UpsertSpec{
		Table:      m.table,
		UniqueCols: []string{colKID},
		UniqueVals: []any{key},
		InsertCols: []string{colCreated, colExpire, "kVl"},
		InsertVals: []any{m.now(), expireAt, val},
	})
}

// Get возвращает значение; истекшая запись считается отсутствующей
func (m *KeyValueMap) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := m.conn.Select(ctx, m.table, "kVl, eTm", "kID = ?", []any{key}, "", 0, 0)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if res.RowCount() == 0 {
		return "", false, nil
	}

	eTm, err := value.ToInt64(res.Get(0, 1))
	if err != nil {
		return "", false, fmt.Errorf("failed to read expiry of %s: %w", key, err)
	}
	if m.expired(eTm) {
		return "", false, nil
	}
	return value.ToString(res.Get(0, 0)), true, nil
}

// Remove удаляет запись
func (m *KeyValueMap) Remove(ctx context.Context, key string) error {
	_, err := m.conn.Delete(ctx, m.table, "kID = ?", []any{key})
	return err
}

// Expiry возвращает время истечения записи (0 - без срока)
func (m *KeyValueMap) Expiry(ctx context.Context, key string) (int64, bool, error) {
	res, err := m.conn.Select(ctx, m.table, colExpire, "kID = ?", []any{key}, "", 0, 0)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read expiry of %s: %w", key, err)
	}
	if res.RowCount() == 0 {
		return 0, false, nil
	}
	eTm, err := value.ToInt64(res.Get(0, 0))
	if err != nil {
		return 0, false, err
	}
	if m.expired(eTm) {
		return 0, false, nil
	}
	return eTm, true, nil
}

// SetExpiry меняет время истечения; false - записи нет
func (m *KeyValueMap) SetExpiry(ctx context.Context, key string, expireAt int64) (bool, error) {
	n, err := m.conn.Exec(ctx, "UPDATE "+m.table+" SET eTm = ? WHERE kID = ?", expireAt, key)
	if err != nil {
		return false, fmt.Errorf("failed to set expiry of %s: %w", key, err)
	}
	return n > 0, nil
}

// Keys возвращает ключи действующих записей по возрастанию
// val != nil - только записи с этим значением (сравнение на стороне клиента:
// Oracle не сравнивает CLOB через =)
func (m *KeyValueMap) Keys(ctx context.Context, val *string) ([]string, error) {
	cols := colKID
	if val != nil {
		cols = "kID, kVl"
	}
	res, err := m.conn.Select(ctx, m.table, cols, "eTm = 0 OR eTm > ?", []any{m.now()}, colKID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys of %s: %w", m.table, err)
	}

	keys := make([]string, 0, res.RowCount())
	for i := range res.Rows {
		if val != nil && value.ToString(res.Get(i, 1)) != *val {
			continue
		}
		keys = append(keys, value.ToString(res.Get(i, 0)))
	}
	return keys, nil
}

// Maintenance удаляет истекшие записи и возвращает их число
func (m *KeyValueMap) Maintenance(ctx context.Context) (int64, error) {
	n, err := m.conn.Delete(ctx, m.table, "eTm <= ? AND eTm > 0", []any{m.now()})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep %s: %w", m.table, err)
	}
	if n > 0 {
		m.logger.Debug().Int64("removed", n).Msg("expired entries removed")
	}
	return n, nil
}

func (m *KeyValueMap) now() int64 {
	return m.clock().Unix()
}

func (m *KeyValueMap) expired(eTm int64) bool {
	return eTm > 0 && eTm <= m.now()
}
