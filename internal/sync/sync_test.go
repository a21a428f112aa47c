package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// fakeSource serves casts from memory with the same offset/limit
// semantics as a real store.
type fakeSource struct {
	casts    []Cast
	fetchErr error
	// failAfter makes fetch fail once the given number of calls
	// succeeded; -1 disables.
	failAfter int
	calls     int
}

func (f *fakeSource) FetchCasts(_ context.Context, minUpdatedAt time.Time, offset, limit int) ([]Cast, error) {
	f.calls++
	if f.fetchErr != nil && (f.failAfter < 0 || f.calls > f.failAfter) {
		return nil, f.fetchErr
	}
	var matched []Cast
	for _, c := range f.casts {
		if !c.UpdatedAt.Before(minUpdatedAt) {
			matched = append(matched, c)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// fakeTarget records ReplaceEmbeds calls and keeps rows per cast hash.
type fakeTarget struct {
	rows       map[embed.Hash][]Row
	replaceErr error
	calls      int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{rows: map[embed.Hash][]Row{}}
}

func (f *fakeTarget) ReplaceEmbeds(_ context.Context, hashes []embed.Hash, rows []Row) error {
	f.calls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	for _, h := range hashes {
		delete(f.rows, h)
	}
	for _, r := range rows {
		f.rows[r.CastHash] = append(f.rows[r.CastHash], r)
	}
	return nil
}

func (f *fakeTarget) total() int {
	n := 0
	for _, rs := range f.rows {
		n += len(rs)
	}
	return n
}

func castHash(t *testing.T, fill byte) embed.Hash {
	t.Helper()
	b := make([]byte, embed.HashLen)
	for i := range b {
		b[i] = fill
	}
	h, err := embed.HashFromBytes(b)
	require.NoError(t, err)
	return h
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

var baseTime = time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)

func TestRun_SingleURLEmbed(t *testing.T) {
	h := castHash(t, 0x11)
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: h, FID: 123, Embeds: `[{"url": "https://example.com/image.jpg"}]`, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	assert.Equal(t, 1, result.CastsProcessed)
	assert.Equal(t, 1, result.EmbedsExtracted)
	assert.Equal(t, 1, result.EmbedsInserted)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, baseTime, result.MaxUpdatedAt)
	assert.NotEmpty(t, result.RunID)

	rows := target.rows[h]
	require.Len(t, rows, 1)
	assert.Equal(t, embed.TypeURL, rows[0].EmbedType)
	assert.Equal(t, "https://example.com/image.jpg", rows[0].URL)
	assert.Equal(t, 0, rows[0].EmbedIndex)
	assert.Equal(t, int64(123), rows[0].CastFID)
	assert.Equal(t, `[{"url": "https://example.com/image.jpg"}]`, rows[0].RawEmbedData)
}

func TestRun_SingleQuotedBufferEncodedQuote(t *testing.T) {
	h := castHash(t, 0x22)
	payload := `"[{'castId': {'fid': 123, 'hash': {'data': [1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20], 'type': 'Buffer'}}}]"`
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: h, FID: 7, Embeds: payload, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	require.Equal(t, 0, result.Errors, "details: %v", result.ErrorDetails)
	rows := target.rows[h]
	require.Len(t, rows, 1)
	assert.Equal(t, embed.TypeCastID, rows[0].EmbedType)
	assert.Equal(t, int64(123), rows[0].QuotedCastFID)
	assert.Equal(t, testHashBytes20(), rows[0].QuotedCastHash.Bytes())
	// raw_embed_data keeps the unwrapped payload.
	assert.Equal(t, payload[1:len(payload)-1], rows[0].RawEmbedData)
}

func TestRun_MalformedRecordIsIsolated(t *testing.T) {
	bad := castHash(t, 0x33)
	good := castHash(t, 0x44)
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: bad, FID: 1, Embeds: "not valid", UpdatedAt: baseTime},
		{Hash: good, FID: 2, Embeds: `[{"url": "https://example.com/ok"}]`, UpdatedAt: baseTime.Add(time.Minute)},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	assert.Equal(t, 2, result.CastsProcessed)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Contains(t, result.ErrorDetails[0], bad.Hex())
	assert.Equal(t, 1, result.EmbedsInserted)
	assert.Len(t, target.rows[good], 1)
	assert.Empty(t, target.rows[bad])
	assert.Equal(t, baseTime.Add(time.Minute), result.MaxUpdatedAt)
}

func TestRun_EmptyPayloadsAreSkipped(t *testing.T) {
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: castHash(t, 1), FID: 1, Embeds: nil, UpdatedAt: baseTime},
		{Hash: castHash(t, 2), FID: 2, Embeds: "", UpdatedAt: baseTime},
		{Hash: castHash(t, 3), FID: 3, Embeds: "[]", UpdatedAt: baseTime},
		{Hash: castHash(t, 4), FID: 4, Embeds: map[string]any{}, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	assert.Equal(t, 4, result.CastsProcessed)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 0, result.EmbedsExtracted)
	assert.Equal(t, 0, target.calls, "no rows means no transaction")
}

func TestRun_PaginatesUntilShortPage(t *testing.T) {
	var casts []Cast
	for i := 0; i < 25; i++ {
		casts = append(casts, Cast{
			Hash:      castHash(t, byte(i+1)),
			FID:       int64(i),
			Embeds:    fmt.Sprintf(`[{"url": "https://example.com/%d"}]`, i),
			UpdatedAt: baseTime.Add(time.Duration(i) * time.Second),
		})
	}
	source := &fakeSource{failAfter: -1, casts: casts}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{BatchSize: 10, Logger: quietLogger()})

	assert.Equal(t, 25, result.CastsProcessed)
	assert.Equal(t, 25, result.EmbedsInserted)
	assert.Equal(t, 3, target.calls)
	assert.Equal(t, baseTime.Add(24*time.Second), result.MaxUpdatedAt)
	assert.Equal(t, 25, target.total())
}

func TestRun_WatermarkFiltersOldCasts(t *testing.T) {
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: castHash(t, 1), FID: 1, Embeds: `[{"url": "https://example.com/old"}]`, UpdatedAt: baseTime.Add(-time.Hour)},
		{Hash: castHash(t, 2), FID: 2, Embeds: `[{"url": "https://example.com/new"}]`, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{MinUpdatedAt: baseTime, Logger: quietLogger()})

	assert.Equal(t, 1, result.CastsProcessed)
	assert.Equal(t, 1, target.total())
}

func TestRun_FetchFailureIsTerminal(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("connection refused"), failAfter: 0}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Contains(t, result.ErrorDetails[0], "sync error")
	assert.Equal(t, 0, result.CastsProcessed)
}

func TestRun_InsertFailureRecordedWithoutRetry(t *testing.T) {
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: castHash(t, 1), FID: 1, Embeds: `[{"url": "https://example.com/a"}]`, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()
	target.replaceErr = errors.New("transaction aborted")

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Contains(t, result.ErrorDetails[0], "insert error")
	assert.Equal(t, 1, result.EmbedsExtracted)
	assert.Equal(t, 0, result.EmbedsInserted)
	assert.Equal(t, 1, target.calls, "no retry")
}

func TestRun_Idempotent(t *testing.T) {
	h := castHash(t, 0x55)
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: h, FID: 9, Embeds: `[{"url": "https://example.com/a"}, {"url": "https://example.com/b"}]`, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	first := Run(context.Background(), source, target, Options{Logger: quietLogger()})
	require.Equal(t, 0, first.Errors)
	afterFirst := append([]Row(nil), target.rows[h]...)

	second := Run(context.Background(), source, target, Options{Logger: quietLogger()})
	require.Equal(t, 0, second.Errors)

	assert.Equal(t, afterFirst, target.rows[h], "re-run must not change the row set")
	assert.Len(t, target.rows[h], 2)
}

func TestRun_DecodedJSONPayload(t *testing.T) {
	// Source adapters may hand over an already-decoded JSON value.
	h := castHash(t, 0x66)
	source := &fakeSource{failAfter: -1, casts: []Cast{
		{Hash: h, FID: 3, Embeds: []any{map[string]any{"url": "https://example.com/x"}}, UpdatedAt: baseTime},
	}}
	target := newFakeTarget()

	result := Run(context.Background(), source, target, Options{Logger: quietLogger()})

	require.Equal(t, 0, result.Errors, "details: %v", result.ErrorDetails)
	rows := target.rows[h]
	require.Len(t, rows, 1)
	assert.Equal(t, `[{"url":"https://example.com/x"}]`, rows[0].RawEmbedData)
}

func testHashBytes20() []byte {
	b := make([]byte, embed.HashLen)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}
