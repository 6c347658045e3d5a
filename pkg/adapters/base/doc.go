// Package base предоставляет общие функции перезаписи SQL для диалектов
//
// Это не SQL парсер: все функции работают с текстом и учитывают только
// строковые литералы в одинарных кавычках. Содержимое литералов никогда
// не изменяется.
//
// # Основные функции
//
//   - CollapseWhitespace - обрезка и схлопывание пробелов
//   - ReplaceOutsideLiterals, ReplacePattern - замена вне литералов
//   - StripIndexIfNotExists, StripTableIfNotExists - для СУБД без IF NOT EXISTS
//   - LimitToFetch - LIMIT/OFFSET в OFFSET ... ROWS FETCH NEXT ... ROWS ONLY
//   - RebindDollar - '?' в $1, $2 (PostgreSQL)
//   - MatchParen, SplitList - разбор скобок и списков колонок
//
// # Использование
//
//	func (d *Dialect) Rewrite(ctx context.Context, q adapters.Querier, sql string) ([]string, error) {
//	    sql = base.CollapseWhitespace(sql)
//	    sql = base.ReplacePattern(sql, base.VarcharMax, "TEXT")
//	    sql, _ = base.StripIndexIfNotExists(sql)
//	    return []string{sql}, nil
//	}
package base
