/*
Package store реализует EAV хранилище объектов поверх adapters.Conn.

Коллекция занимает две таблицы:

	MB_<collection>  pKy, cTm, uTm, eTm, oID         - объекты
	MD_<collection>  pKy, cTm, uTm, eTm, oID, kID,   - значения атрибутов
	                 idx, typ, nVl, sVl, tVl, rVl

Значение атрибута хранится в одной из колонок по типу (typ):

	0 Null    -
	1 строка  sVl (до 64 байт)
	2 текст   tVl, xxh3 хэш в sVl
	3 целое   nVl
	4 дробное nVl и точная запись в sVl
	5 байты   rVl

Пример:

	conn, _ := all.Factory().Open(ctx, adapters.Config{Type: "sqlite", URL: "app.db"})
	people, _ := store.New(conn, "people")
	people.SystemSetup(ctx)

	id, _ := people.Put(ctx, "", store.Object{"name": value.String("ann"), "age": value.Int(31)}, nil)
	adults, _ := people.Query(ctx, "age >= ?", []any{18}, "name", 0, 0)

Условия Query разбирает pkg/core/predicate; каждое сравнение становится
подзапросом к MD, поэтому отсутствующий атрибут не равен никакому значению.

KeyValueMap - отдельный строковый словарь KV_<name> с временем жизни записей.
*/
package store
