package store

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
)

// fetchChunk - число oID в одном IN (...) при чтении нескольких объектов
const fetchChunk = 500

// Put записывает атрибуты объекта и возвращает его oID
//
// Пустой id - создается новый объект. changedKeys == nil - полная запись:
// все ключи attrs, а сохраненные ключи, которых нет в attrs, получают Null.
// Иначе пишутся только changedKeys (отсутствующий в attrs ключ получает Null).
//
// Запись идет без транзакции: сбой между строкой объекта и строками значений
// оставляет объект с прежним набором значений
func (s *Store) Put(ctx context.Context, id string, attrs Object, changedKeys []string) (string, error) {
	if id == "" {
		id = value.NewGUID()
	}
	if len(id) > MaxKeyLength {
		return "", illegal("put", "object id %q exceeds %d characters", id, MaxKeyLength)
	}

	keys, err := s.keysInScope(ctx, id, attrs, changedKeys)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if k == "" || len(k) > MaxKeyLength {
			return "", illegal("put", "key %q must be 1..%d characters", k, MaxKeyLength)
		}
	}

	now := s.now()
	err = s.conn.Upsert(ctx, stmt.UpsertSpec{
		Table:       s.baseTable,
		UniqueCols:  []string{colOID},
		UniqueVals:  []any{id},
		InsertCols:  []string{colUpdated},
		InsertVals:  []any{now},
		DefaultCols: []string{colCreated, colExpire},
		DefaultVals: []any{now, int64(0)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", id, err)
	}

	for _, k := range keys {
		if err := s.putValue(ctx, id, k, attrs[k], now); err != nil {
			return "", err
		}
	}

	s.invalidate(ctx, id)
	s.publish(ctx, Event{Collection: s.collection, OID: id, Op: OpPut, Keys: keys})
	return id, nil
}

func (s *Store) putValue(ctx context.Context, id, key string, v value.Value, now int64) error {
	enc := v.Encode()

	insertCols := append([]string{colUpdated, colTyp}, enc.Cols...)
	insertVals := append([]any{now, enc.Typ}, enc.Vals...)

	err := s.conn.Upsert(ctx, stmt.UpsertSpec{
		Table:       s.dataTable,
		UniqueCols:  []string{colOID, colKID, colIdx},
		UniqueVals:  []any{id, key, int64(0)},
		InsertCols:  insertCols,
		InsertVals:  insertVals,
		DefaultCols: []string{colCreated, colExpire},
		DefaultVals: []any{now, int64(0)},
		MiscCols:    enc.Untouch,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", id, key, err)
	}
	return nil
}

// keysInScope возвращает отсортированные ключи для записи
func (s *Store) keysInScope(ctx context.Context, id string, attrs Object, changedKeys []string) ([]string, error) {
	set := map[string]struct{}{}

	if changedKeys != nil {
		for _, k := range changedKeys {
			set[k] = struct{}{}
		}
	} else {
		for k := range attrs {
			set[k] = struct{}{}
		}
		res, err := s.conn.Select(ctx, s.dataTable, colKID, "oID = ? AND typ <> 0", []any{id}, "", 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read keys of %s: %w", id, err)
		}
		for i := range res.Rows {
			set[value.ToString(res.Get(i, 0))] = struct{}{}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get читает объект; отсутствующий объект - (nil, false, nil)
// Атрибуты со значением Null в результат не попадают
func (s *Store) Get(ctx context.Context, id string) (Object, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	if s.cache != nil {
		obj, ok, err := s.cache.Get(ctx, s.collection, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("oid", id).Msg("cache read failed")
		} else if ok {
			return obj, true, nil
		}
	}

	res, err := s.conn.Select(ctx, s.dataTable, dataSelect, "oID = ? AND idx = 0", []any{id}, "", 0, 0)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object %s: %w", id, err)
	}

	objects, err := decodeRows(res)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode object %s: %w", id, err)
	}

	obj, ok := objects[id]
	if !ok {
		// объект без атрибутов существует, если есть строка в MB
		n, err := s.conn.Count(ctx, s.baseTable, "oID = ?", []any{id})
		if err != nil {
			return nil, false, fmt.Errorf("failed to read object %s: %w", id, err)
		}
		if n == 0 {
			return nil, false, nil
		}
		obj = Object{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.collection, id, obj); err != nil {
			s.logger.Warn().Err(err).Str("oid", id).Msg("cache write failed")
		}
	}
	return obj, true, nil
}

// GetMany читает объекты по списку oID, сохраняя порядок
// Отсутствующему oID соответствует пустой Object; кэш не используется
func (s *Store) GetMany(ctx context.Context, ids []string) ([]Object, error) {
	out := make([]Object, 0, len(ids))
	for start := 0; start < len(ids); start += fetchChunk {
		end := min(start+fetchChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		where := "idx = 0 AND oID IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ") + ")"

		res, err := s.conn.Select(ctx, s.dataTable, dataSelect, where, args, "", 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read objects: %w", err)
		}
		objects, err := decodeRows(res)
		if err != nil {
			return nil, err
		}
		for _, id := range chunk {
			obj, ok := objects[id]
			if !ok {
				obj = Object{}
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// decodeRows группирует строки MD по oID
func decodeRows(res *adapters.Result) (map[string]Object, error) {
	cOID, cKID := res.ColumnIndex(colOID), res.ColumnIndex(colKID)
	cTyp := res.ColumnIndex(colTyp)
	cNum, cStr := res.ColumnIndex(value.ColNumber), res.ColumnIndex(value.ColString)
	cText, cRaw := res.ColumnIndex(value.ColText), res.ColumnIndex(value.ColRaw)

	objects := map[string]Object{}
	for i := range res.Rows {
		id := value.ToString(res.Get(i, cOID))
		obj, ok := objects[id]
		if !ok {
			obj = Object{}
			objects[id] = obj
		}

		v, err := value.Decode(res.Get(i, cTyp), res.Get(i, cNum), res.Get(i, cStr), res.Get(i, cText), res.Get(i, cRaw))
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", res.Get(i, cKID), err)
		}
		if v.IsNull() {
			continue
		}
		obj[value.ToString(res.Get(i, cKID))] = v
	}
	return objects, nil
}

// Remove удаляет объект и все его значения в одной транзакции
func (s *Store) Remove(ctx context.Context, id string) error {
	err := s.conn.Tx(ctx, func(tx *adapters.Conn) error {
		if _, err := tx.Delete(ctx, s.dataTable, "oID = ?", []any{id}); err != nil {
			return err
		}
		_, err := tx.Delete(ctx, s.baseTable, "oID = ?", []any{id})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to remove object %s: %w", id, err)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, Event{Collection: s.collection, OID: id, Op: OpRemove})
	return nil
}

// KeyNames возвращает имена всех атрибутов коллекции
// depth не используется: выборка идет по индексу, а не по объектам
func (s *Store) KeyNames(ctx context.Context, depth int) ([]string, error) {
	res, err := s.conn.Select(ctx, s.dataTable, "DISTINCT kID", "typ <> 0", nil, "kID", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read key names: %w", err)
	}
	return stringColumn(res), nil
}

// KeySet возвращает oID всех объектов по возрастанию
func (s *Store) KeySet(ctx context.Context) ([]string, error) {
	res, err := s.conn.Select(ctx, s.baseTable, colOID, "", nil, colOID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read object ids: %w", err)
	}
	return stringColumn(res), nil
}

// LooselyIterateObjectID возвращает наименьший oID больше current
// (первый oID для пустого current); "" - объектов больше нет
//
// Объекты, созданные или удаленные во время обхода, могут быть пропущены или
// посещены повторно
func (s *Store) LooselyIterateObjectID(ctx context.Context, current string) (string, error) {
	where, args := "", []any(nil)
	if current != "" {
		where, args = "oID > ?", []any{current}
	}

	res, err := s.conn.Select(ctx, s.baseTable, colOID, where, args, colOID, 1, 0)
	if err != nil {
		return "", fmt.Errorf("failed to iterate object ids: %w", err)
	}
	if res.RowCount() == 0 {
		return "", nil
	}
	return value.ToString(res.Get(0, 0)), nil
}

// RandomObjectID возвращает oID случайного объекта; "" для пустой коллекции
func (s *Store) RandomObjectID(ctx context.Context) (string, error) {
	n, err := s.conn.Count(ctx, s.baseTable, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to count objects: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	res, err := s.conn.Select(ctx, s.baseTable, colOID, "", nil, colOID, 1, int(rand.Int63n(n)))
	if err != nil {
		return "", fmt.Errorf("failed to pick object id: %w", err)
	}
	if res.RowCount() == 0 {
		return "", nil
	}
	return value.ToString(res.Get(0, 0)), nil
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.collection, id); err != nil {
		s.logger.Warn().Err(err).Str("oid", id).Msg("cache invalidation failed")
	}
}

func (s *Store) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	ev.Time = s.clock()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("oid", ev.OID).Str("op", ev.Op).Msg("event publish failed")
	}
}

func stringColumn(res *adapters.Result) []string {
	out := make([]string, 0, res.RowCount())
	for i := range res.Rows {
		out = append(out, value.ToString(res.Get(i, 0)))
	}
	return out
}
