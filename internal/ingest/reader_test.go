package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func TestDetectEncoding(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("日付,金額\n2025/07/01,1000\n"))
	require.NoError(t, err)

	assert.Equal(t, UTF8, DetectEncoding([]byte("日付,金額\n")))
	assert.Equal(t, UTF8, DetectEncoding(append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...)))
	assert.Equal(t, ShiftJIS, DetectEncoding(sjis))
	assert.Equal(t, UTF8, DetectEncoding(nil))
}

func TestReadRecordsUTF8WithBOM(t *testing.T) {
	input := "\ufeff注文日,販売価格\n2025/07/01,\"1,000\"\n,\n2025/07/02,500\n"

	table, err := ReadRecords(context.Background(), strings.NewReader(input), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, UTF8, table.Encoding)
	assert.Equal(t, []string{"注文日", "販売価格"}, table.Columns())
	require.Len(t, table.Records, 2)
	assert.Equal(t, 1, table.Blank)

	v, ok := table.Records[0].Get("販売価格")
	assert.True(t, ok)
	assert.Equal(t, "1,000", v)
}

func TestReadRecordsShiftJIS(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("日付,金額\n2025/07/01,1000\n"))
	require.NoError(t, err)

	table, err := ReadRecords(context.Background(), bytes.NewReader(sjis), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, ShiftJIS, table.Encoding)
	assert.Equal(t, []string{"日付", "金額"}, table.Header)
	v, _ := table.Records[0].Get("日付")
	assert.Equal(t, "2025/07/01", v)
}

func TestReadRecordsRaggedRows(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"

	table, err := ReadRecords(context.Background(), strings.NewReader(input), DefaultLimits())
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 3, table.Records[0].Len())
	c, _ := table.Records[0].Get("c")
	assert.Equal(t, "", c)
	assert.Equal(t, 3, table.Records[1].Len())
}

func TestReadRecordsLimits(t *testing.T) {
	input := "a\n1\n2\n3\n"

	table, err := ReadRecords(context.Background(), strings.NewReader(input), Limits{MaxBytes: 1 << 10, MaxRows: 2})
	require.NoError(t, err)
	assert.True(t, table.Truncated)
	assert.Len(t, table.Records, 2)

	_, err = ReadRecords(context.Background(), strings.NewReader(input), Limits{MaxBytes: 4, MaxRows: 10})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestReadRecordsEmpty(t *testing.T) {
	_, err := ReadRecords(context.Background(), strings.NewReader(""), DefaultLimits())
	assert.ErrorIs(t, err, ErrNoHeader)

	table, err := ReadRecords(context.Background(), strings.NewReader("a,b\n"), DefaultLimits())
	require.NoError(t, err)
	assert.Empty(t, table.Records)
}

func TestReadRecordsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadRecords(ctx, strings.NewReader("a\n1\n"), DefaultLimits())
	assert.ErrorIs(t, err, context.Canceled)
}
