package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
)

// Префиксы таблиц коллекции
const (
	BaseTablePrefix = "MB_"
	DataTablePrefix = "MD_"
)

// MaxKeyLength - ширина колонок oID и kID
const MaxKeyLength = 64

// Колонки таблиц
const (
	colPKey    = "pKy"
	colCreated = "cTm"
	colUpdated = "uTm"
	colExpire  = "eTm"
	colOID     = "oID"
	colKID     = "kID"
	colIdx     = "idx"
	colTyp     = "typ"
)

var (
	baseColumns = []string{colPKey, colCreated, colUpdated, colExpire, colOID}
	baseTypes   = []string{"BIGINT PRIMARY KEY AUTOINCREMENT", "BIGINT", "BIGINT", "BIGINT", "VARCHAR(64)"}

	dataColumns = []string{colPKey, colCreated, colUpdated, colExpire, colOID, colKID, colIdx, colTyp,
		value.ColNumber, value.ColString, value.ColText, value.ColRaw}
	dataTypes = []string{"BIGINT PRIMARY KEY AUTOINCREMENT", "BIGINT", "BIGINT", "BIGINT", "VARCHAR(64)",
		"VARCHAR(64)", "TINYINT", "TINYINT", "DECIMAL(36,12)", "VARCHAR(64)", "VARCHAR(MAX)", "BLOB"}

	// колонки чтения значения в порядке value.Decode
	dataSelect = "oID, kID, idx, typ, nVl, sVl, tVl, rVl"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Object - атрибуты объекта
type Object map[string]value.Value

// Record - объект вместе с его oID
type Record struct {
	OID   string `json:"oid"`
	Attrs Object `json:"attrs"`
}

// Keys возвращает отсортированные имена атрибутов
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ObjectCache - кэш прочитанных объектов (реализация: pkg/cache)
// Ошибки кэша не прерывают операцию: Store читает и пишет в БД напрямую
type ObjectCache interface {
	Get(ctx context.Context, collection, id string) (Object, bool, error)
	Set(ctx context.Context, collection, id string, obj Object) error
	Invalidate(ctx context.Context, collection, id string) error
}

// Операции, о которых сообщает Publisher
const (
	OpPut    = "put"
	OpRemove = "remove"
)

// Event - изменение объекта коллекции
type Event struct {
	Collection string    `json:"collection"`
	OID        string    `json:"oid"`
	Op         string    `json:"op"`
	Keys       []string  `json:"keys,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher публикует изменения (реализации: pkg/events)
// Ошибка публикации логируется и не влияет на результат записи
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Store - EAV хранилище объектов одной коллекции
//
//	MB_<collection> - объекты (oID, cTm, uTm, eTm)
//	MD_<collection> - значения атрибутов (oID, kID, idx, typ, nVl, sVl, tVl, rVl)
//
// Store использует одно соединение и не рассчитан на вызовы из нескольких горутин
type Store struct {
	conn       *adapters.Conn
	collection string
	baseTable  string
	dataTable  string

	logger    zerolog.Logger
	cache     ObjectCache
	publisher Publisher
	clock     func() time.Time

	mu       sync.Mutex
	lastTime int64
}

// Option настраивает Store
type Option func(*Store)

// WithLogger задает логгер
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCache задает кэш объектов
func WithCache(cache ObjectCache) Option {
	return func(s *Store) {
		s.cache = cache
	}
}

// WithPublisher задает публикацию изменений
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// WithClock задает источник времени (для тестов)
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New создает Store для коллекции; таблицы создаются SystemSetup
func New(conn *adapters.Conn, collection string, opts ...Option) (*Store, error) {
	if conn == nil {
		return nil, illegal("new", "connection is required")
	}
	if !collectionName.MatchString(collection) {
		return nil, illegal("new", "invalid collection name %q", collection)
	}

	s := &Store{
		conn:       conn,
		collection: collection,
		baseTable:  BaseTablePrefix + collection,
		dataTable:  DataTablePrefix + collection,
		logger:     zerolog.Nop(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("collection", collection).Logger()
	return s, nil
}

// Collection возвращает имя коллекции
func (s *Store) Collection() string { return s.collection }

// Conn возвращает соединение хранилища
func (s *Store) Conn() *adapters.Conn { return s.conn }

// BaseTable и DataTable возвращают имена таблиц
func (s *Store) BaseTable() string { return s.baseTable }
func (s *Store) DataTable() string { return s.dataTable }

// ========== Lifecycle ==========

// SystemSetup создает таблицы и индексы, если их нет
func (s *Store) SystemSetup(ctx context.Context) error {
	if err := s.conn.CreateTable(ctx, s.baseTable, baseColumns, baseTypes); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.baseTable, err)
	}
	if err := s.conn.CreateIndex(ctx, s.baseTable, colOID, "UNIQUE", "unq"); err != nil {
		return fmt.Errorf("failed to create %s unique index: %w", s.baseTable, err)
	}

	if err := s.conn.CreateTable(ctx, s.dataTable, dataColumns, dataTypes); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dataTable, err)
	}
	indexes := []struct {
		columns, typ, suffix string
	}{
		{"oID, kID, idx", "UNIQUE", "unq"},
		{"kID, nVl", "", "knIdx"},
		{"kID, sVl", "", "ksIdx"},
	}
	for _, idx := range indexes {
		if err := s.conn.CreateIndex(ctx, s.dataTable, idx.columns, idx.typ, idx.suffix); err != nil {
			return fmt.Errorf("failed to create %s index %s: %w", s.dataTable, idx.suffix, err)
		}
	}

	// Внешний ключ необязателен: SQLite не умеет ADD CONSTRAINT,
	// на остальных СУБД повторное добавление дает ошибку
	fk := "ALTER TABLE " + s.dataTable + " ADD CONSTRAINT " + s.dataTable + "_fk FOREIGN KEY (oID) REFERENCES " +
		s.baseTable + " (oID) ON DELETE CASCADE"
	if _, err := s.conn.Exec(ctx, fk); err != nil {
		s.logger.Warn().Err(err).Msg("foreign key not added")
	}

	s.logger.Debug().Msg("system setup complete")
	return nil
}

// SystemDestroy удаляет таблицы коллекции
func (s *Store) SystemDestroy(ctx context.Context) error {
	if err := s.conn.DropTable(ctx, s.dataTable); err != nil {
		return fmt.Errorf("failed to drop %s: %w", s.dataTable, err)
	}
	if err := s.conn.DropTable(ctx, s.baseTable); err != nil {
		return fmt.Errorf("failed to drop %s: %w", s.baseTable, err)
	}
	return nil
}

// Clear удаляет все объекты коллекции
func (s *Store) Clear(ctx context.Context) error {
	return s.conn.Tx(ctx, func(tx *adapters.Conn) error {
		if _, err := tx.Delete(ctx, s.dataTable, "", nil); err != nil {
			return fmt.Errorf("failed to clear %s: %w", s.dataTable, err)
		}
		if _, err := tx.Delete(ctx, s.baseTable, "", nil); err != nil {
			return fmt.Errorf("failed to clear %s: %w", s.baseTable, err)
		}
		return nil
	})
}

// Maintenance - периодическое обслуживание; для объектов ничего не делает
func (s *Store) Maintenance(ctx context.Context) error {
	return nil
}

// now возвращает время в миллисекундах, строго возрастающее в пределах Store
func (s *Store) now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.clock().UnixMilli()
	if t <= s.lastTime {
		t = s.lastTime + 1
	}
	s.lastTime = t
	return t
}

func illegal(op, format string, args ...any) error {
	return &adapters.StoreError{
		Op:   op,
		Kind: adapters.KindPrecondition,
		Err:  fmt.Errorf("%w: %s", stmt.ErrIllegalArgument, fmt.Sprintf(format, args...)),
	}
}
