package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DialectConstructor - функция-конструктор диалекта
type DialectConstructor func() Dialect

// Factory - фабрика диалектов
// Глобального реестра нет: фабрику создает и наполняет вызывающий код
// (готовый набор всех диалектов - pkg/adapters/all)
type Factory struct {
	registry map[string]DialectConstructor
	mu       sync.RWMutex
}

// NewFactory создает пустую фабрику
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]DialectConstructor),
	}
}

// Register регистрирует конструктор диалекта для типа БД
//
// Пример:
//
//	factory.Register("sqlite", func() adapters.Dialect {
//	    return sqlite.New()
//	})
func (f *Factory) Register(dbType string, constructor DialectConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[dbType] = constructor
}

// Unregister удаляет конструктор диалекта
func (f *Factory) Unregister(dbType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registry, dbType)
}

// IsRegistered проверяет, зарегистрирован ли диалект
func (f *Factory) IsRegistered(dbType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[dbType]
	return ok
}

// GetRegisteredTypes возвращает отсортированный список типов БД
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for dbType := range f.registry {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// Dialect возвращает новый экземпляр диалекта без подключения к БД
func (f *Factory) Dialect(dbType string) (Dialect, error) {
	f.mu.RLock()
	constructor, ok := f.registry[dbType]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database type: %s (available types: %v)",
			dbType, f.GetRegisteredTypes())
	}
	return constructor(), nil
}

// Open создает диалект по cfg.Type и открывает соединение
//
// Пример:
//
//	conn, err := all.Factory().Open(ctx, adapters.Config{
//	    Type: "sqlite",
//	    URL:  "file:app.db",
//	}, adapters.WithLogger(logger))
func (f *Factory) Open(ctx context.Context, cfg Config, opts ...Option) (*Conn, error) {
	d, err := f.Dialect(cfg.Type)
	if err != nil {
		return nil, err
	}

	conn, err := Open(ctx, d, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return conn, nil
}
