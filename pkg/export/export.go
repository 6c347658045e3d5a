// Package export writes collection snapshots and restores them.
//
// JSONL snapshot: one Record per line, optionally zstd-compressed. The xxh3
// checksum covers the uncompressed lines so a snapshot can be verified after
// recompression or transfer.
package export

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/eavsql/pkg/store"
)

// DefaultCompressLevel - уровень zstd по умолчанию
const DefaultCompressLevel = 3

// Record - строка JSONL снимка
type Record = store.Record

// Summary - итог экспорта
type Summary struct {
	Count    int    `json:"count"`
	Checksum string `json:"checksum"` // hex xxh3 несжатых строк
}

// Exporter обходит коллекцию и пишет снимки
type Exporter struct {
	store         *store.Store
	logger        zerolog.Logger
	compressLevel int
}

// Option настраивает Exporter
type Option func(*Exporter)

// WithLogger задает логгер
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithCompressLevel задает уровень zstd: 1 (быстрее) - 22 (плотнее)
func WithCompressLevel(level int) Option {
	return func(e *Exporter) {
		if level > 0 {
			e.compressLevel = level
		}
	}
}

// New создает Exporter
func New(s *store.Store, opts ...Option) *Exporter {
	e := &Exporter{store: s, logger: zerolog.Nop(), compressLevel: DefaultCompressLevel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Walk вызывает fn для каждого объекта по возрастанию oID
// Объекты, удаленные во время обхода, пропускаются
func (e *Exporter) Walk(ctx context.Context, fn func(id string, obj store.Object) error) error {
	id, err := e.store.LooselyIterateObjectID(ctx, "")
	for ; err == nil && id != ""; id, err = e.store.LooselyIterateObjectID(ctx, id) {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok, err := e.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(id, obj); err != nil {
			return err
		}
	}
	return err
}

// WriteJSONL пишет снимок коллекции
func (e *Exporter) WriteJSONL(ctx context.Context, w io.Writer, compress bool) (Summary, error) {
	var out io.Writer = w
	var zw *zstd.Encoder
	if compress {
		var err error
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(e.compressLevel)))
		if err != nil {
			return Summary{}, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		out = zw
	}

	hash := xxh3.New()
	mw := io.MultiWriter(out, hash)
	enc := json.NewEncoder(mw)

	var sum Summary
	err := e.Walk(ctx, func(id string, obj store.Object) error {
		if err := enc.Encode(Record{OID: id, Attrs: obj}); err != nil {
			return fmt.Errorf("failed to write %s: %w", id, err)
		}
		sum.Count++
		return nil
	})
	if zw != nil {
		if cerr := zw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to finish zstd stream: %w", cerr)
		}
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to export %s: %w", e.store.Collection(), err)
	}

	sum.Checksum = hex.EncodeToString(hash.Sum(nil))
	e.logger.Info().Int("objects", sum.Count).Str("checksum", sum.Checksum).Bool("compressed", compress).
		Msg("collection exported")
	return sum, nil
}

// ImportJSONL восстанавливает объекты снимка полной записью Put
// Возвращает число записанных объектов и checksum прочитанных строк
func (e *Exporter) ImportJSONL(ctx context.Context, r io.Reader, compressed bool) (Summary, error) {
	in := r
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	hash := xxh3.New()
	dec := json.NewDecoder(io.TeeReader(in, hash))

	var sum Summary
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("failed to read record %d: %w", sum.Count+1, err)
		}
		if rec.Attrs == nil {
			rec.Attrs = store.Object{}
		}
		if _, err := e.store.Put(ctx, rec.OID, rec.Attrs, nil); err != nil {
			return sum, fmt.Errorf("failed to import %s: %w", rec.OID, err)
		}
		sum.Count++
	}

	sum.Checksum = hex.EncodeToString(hash.Sum(nil))
	e.logger.Info().Int("objects", sum.Count).Msg("collection imported")
	return sum, nil
}
