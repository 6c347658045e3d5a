// Package all собирает фабрику со всеми поддерживаемыми диалектами
package all

import (
	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/mssql"
	"github.com/ruslano69/eavsql/pkg/adapters/mysql"
	"github.com/ruslano69/eavsql/pkg/adapters/oracle"
	"github.com/ruslano69/eavsql/pkg/adapters/postgres"
	"github.com/ruslano69/eavsql/pkg/adapters/sqlite"
)

// Factory возвращает новую фабрику с зарегистрированными sqlite, mysql, mssql, oracle и postgres
func Factory() *adapters.Factory {
	f := adapters.NewFactory()
	f.Register(sqlite.DialectType, func() adapters.Dialect { return sqlite.New() })
	f.Register(mysql.DialectType, func() adapters.Dialect { return mysql.New() })
	f.Register(mssql.DialectType, func() adapters.Dialect { return mssql.New() })
	f.Register(oracle.DialectType, func() adapters.Dialect { return oracle.New() })
	f.Register(postgres.DialectType, func() adapters.Dialect { return postgres.New() })

	// Синонимы, принятые в конфигурациях
	f.Register("sqlserver", func() adapters.Dialect { return mssql.New() })
	f.Register("postgresql", func() adapters.Dialect { return postgres.New() })
	return f
}
