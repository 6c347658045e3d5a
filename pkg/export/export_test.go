package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/sqlite"
	"github.com/ruslano69/eavsql/pkg/core/value"
	"github.com/ruslano69/eavsql/pkg/store"
)

func newTestStore(t *testing.T, collection string) *store.Store {
	t.Helper()
	ctx := context.Background()
	conn, err := adapters.Open(ctx, sqlite.New(), adapters.Config{URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s, err := store.New(conn, collection)
	require.NoError(t, err)
	require.NoError(t, s.SystemSetup(ctx))
	return s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	objects := map[string]store.Object{
		"a1": {"name": value.String("ann"), "age": value.Int(31)},
		"a2": {"name": value.String(strings.Repeat("long ", 30)), "score": value.Float(2.5)},
		"a3": {"blob": value.Bytes([]byte("hi"))},
	}
	for id, obj := range objects {
		_, err := s.Put(context.Background(), id, obj, nil)
		require.NoError(t, err)
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src := newTestStore(t, "src")
			seed(t, src)

			var buf bytes.Buffer
			sum, err := New(src, WithCompressLevel(5)).WriteJSONL(ctx, &buf, compress)
			require.NoError(t, err)
			assert.Equal(t, 3, sum.Count)
			assert.Len(t, sum.Checksum, 16)

			dst := newTestStore(t, "dst")
			imported, err := New(dst).ImportJSONL(ctx, &buf, compress)
			require.NoError(t, err)
			assert.Equal(t, sum, imported)

			for _, id := range []string{"a1", "a2", "a3"} {
				want, _, err := src.Get(ctx, id)
				require.NoError(t, err)
				got, ok, err := dst.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, ok, id)
				assert.Equal(t, want, got, id)
			}
		})
	}
}

func TestJSONL_ChecksumIgnoresCompression(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "people")
	seed(t, s)
	e := New(s)

	plain, err := e.WriteJSONL(ctx, io.Discard, false)
	require.NoError(t, err)
	packed, err := e.WriteJSONL(ctx, io.Discard, true)
	require.NoError(t, err)
	assert.Equal(t, plain.Checksum, packed.Checksum)
}

func TestJSONL_Lines(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "people")
	_, err := s.Put(ctx, "x", store.Object{"n": value.Int(7)}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = New(s).WriteJSONL(ctx, &buf, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"oid":"x","attrs":{"n":{"t":3,"i":7}}}`, strings.TrimSpace(buf.String()))
}

func TestImportJSONL_BadInput(t *testing.T) {
	s := newTestStore(t, "people")
	_, err := New(s).ImportJSONL(context.Background(), strings.NewReader(`{"oid":"x","attrs":{}}`+"\n{broken"), false)
	assert.Error(t, err)

	// первая запись успела записаться
	_, ok, err := s.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteXLSX(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "people")
	seed(t, s)

	var buf bytes.Buffer
	n, err := New(s).WriteXLSX(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("people")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"_oid", "age", "blob", "name", "score"}, rows[0])
	assert.Equal(t, []string{"a1", "31", "", "ann"}, rows[1])
	assert.Equal(t, "a3", rows[3][0])
	assert.Equal(t, "aGk=", rows[3][2])
}

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key = *input.Bucket, *input.Key
	f.body, _ = io.ReadAll(input.Body)
	return &manager.UploadOutput{Location: "https://s3.example/" + f.bucket + "/" + f.key}, nil
}

func TestUploadS3(t *testing.T) {
	fake := &fakeUploader{}
	u := &S3Uploader{uploader: fake, bucket: "snapshots"}

	loc, err := u.UploadS3(context.Background(), "", "people.jsonl.zst", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example/snapshots/people.jsonl.zst", loc)
	assert.Equal(t, "data", string(fake.body))

	_, err = u.UploadS3(context.Background(), "other", "", strings.NewReader("data"))
	assert.Error(t, err)

	fake.err = errors.New("access denied")
	_, err = u.UploadS3(context.Background(), "", "k", strings.NewReader("data"))
	assert.ErrorContains(t, err, "access denied")
}
