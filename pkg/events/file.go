package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ruslano69/eavsql/pkg/store"
)

// File - журнал событий в файле, по одному JSON на строку
// При превышении размера файл переименовывается в <path>.1, старые копии сдвигаются
type File struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	maxBackups  int
	currentSize int64
}

// NewFile открывает (дописывает) журнал cfg.Path
func NewFile(cfg Config) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.New("file journal: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}

	return &File{
		file:        file,
		path:        cfg.Path,
		maxSize:     maxSize * 1024 * 1024,
		maxBackups:  maxBackups,
		currentSize: info.Size(),
	}, nil
}

// Publish дописывает событие в журнал
func (f *File) Publish(_ context.Context, ev store.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return errors.New("file journal is closed")
	}
	if f.currentSize > 0 && f.currentSize+int64(len(data)) > f.maxSize {
		if err := f.rotate(); err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
	}

	n, err := f.file.Write(data)
	f.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func (f *File) rotate() error {
	if err := f.file.Close(); err != nil {
		return err
	}

	// <path>.N удаляется, остальные сдвигаются на один
	os.Remove(fmt.Sprintf("%s.%d", f.path, f.maxBackups))
	for i := f.maxBackups - 1; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", f.path, i)
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, fmt.Sprintf("%s.%d", f.path, i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(f.path, f.path+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		f.file = nil
		return err
	}
	f.file = file
	f.currentSize = 0
	return nil
}

// Sync сбрасывает журнал на диск
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// Close закрывает журнал
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Type возвращает TypeFile
func (f *File) Type() string { return TypeFile }

// Path возвращает путь к журналу
func (f *File) Path() string { return f.path }
