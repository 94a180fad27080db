package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestEncoderLegacyFrames(t *testing.T) {
	var buf flushRecorder
	enc := NewEncoder(&buf, FormatLegacy)

	require.NoError(t, enc.Emit(domain.TextEvent("Hello")))
	require.NoError(t, enc.Emit(domain.ModelEvent("google/gemini")))
	require.NoError(t, enc.Emit(domain.DoneEvent()))

	assert.Equal(t,
		"data: {\"chunk\":\"Hello\"}\n\n"+
			"data: {\"chunk\":\"__MODEL__:google/gemini\"}\n\n"+
			"data: [DONE]\n\n",
		buf.String())
	assert.Equal(t, 3, buf.flushes)
}

func TestEncoderTypedFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, FormatTyped)

	sources := []domain.SearchResult{{Title: "Go", URL: "https://go.dev", Domain: "go.dev", Score: 5}}
	require.NoError(t, enc.Emit(domain.SourcesEvent(sources)))
	require.NoError(t, enc.Emit(domain.TextEvent("Hi")))
	require.NoError(t, enc.Emit(domain.ModelEvent("ignored")))
	require.NoError(t, enc.Emit(domain.ErrorEvent("oops")))
	require.NoError(t, enc.Emit(domain.DoneEvent()))

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.True(t, strings.HasPrefix(frames[0], `data: {"type":"sources","sources":[`))
	assert.Equal(t, `data: {"type":"text","content":"Hi"}`, frames[1])
	assert.Equal(t, `data: {"type":"error","content":"oops"}`, frames[2])
	assert.Equal(t, `data: [DONE]`, frames[3])
}

func TestEncoderOrdering(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, FormatTyped)

	require.NoError(t, enc.Emit(domain.TextEvent("first")))
	assert.ErrorIs(t, enc.Emit(domain.SourcesEvent(nil)), ErrOutOfOrder)

	require.NoError(t, enc.Emit(domain.DoneEvent()))
	require.NoError(t, enc.Emit(domain.DoneEvent()))
	assert.ErrorIs(t, enc.Emit(domain.TextEvent("late")), ErrClosed)
	assert.Equal(t, 1, strings.Count(buf.String(), DoneSentinel))
}

func TestSinkWriteError(t *testing.T) {
	boom := errors.New("client gone")
	sink := NewSink(FormatLegacy, func([]byte) error { return boom })
	assert.ErrorIs(t, sink.Emit(domain.TextEvent("x")), boom)
}

func TestRoundTrip(t *testing.T) {
	deltas := []string{"Hello", " wörld", "\n- line\n", `quote " and \ slash`, "مرحبا", "emoji 🚀"}

	for _, format := range []Format{FormatLegacy, FormatTyped} {
		var buf bytes.Buffer
		enc := NewEncoder(&buf, format)
		for _, d := range deltas {
			require.NoError(t, enc.Emit(domain.TextEvent(d)))
		}
		require.NoError(t, enc.Emit(domain.ModelEvent("m")))
		require.NoError(t, enc.Emit(domain.DoneEvent()))

		r := NewReader(&buf)
		var got []string
		for {
			e, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			if e.Type == domain.EventText {
				got = append(got, e.Text)
			}
		}
		assert.Equal(t, deltas, got)
		assert.Equal(t, strings.Join(deltas, ""), r.Text())
		if format == FormatLegacy {
			assert.Equal(t, domain.Candidate("m"), r.Model())
		}
	}
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader(strings.NewReader("data: {\"chunk\":\"a\"}\n\n"))
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParsePayload(t *testing.T) {
	e, err := ParsePayload([]byte(`{"type":"sources","sources":[{"url":"https://x"}]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventSources, e.Type)
	assert.Equal(t, "https://x", e.Sources[0].URL)

	_, err = ParsePayload([]byte(`{"type":"bogus"}`))
	assert.Error(t, err)

	_, err = ParsePayload([]byte(`not json`))
	assert.Error(t, err)
}

func TestStripCJK(t *testing.T) {
	assert.Equal(t, "Hello !", StripCJK("Hello 你好!"))
	assert.Equal(t, "ab", StripCJK("aこんにちはカタカナb"))
	assert.Equal(t, "", StripCJK("안녕하세요"))
	assert.Equal(t, "مرحبا", StripCJK("مرحبا"))
}

func TestDecodeDeltas(t *testing.T) {
	upstream := strings.Join([]string{
		": OPENROUTER PROCESSING",
		"",
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		"data: not-json",
		`data:{"choices":[{"delta":{"content":"lo 世界"}}]}`,
		"data: [DONE]",
		`data: {"choices":[{"delta":{"content":"after done"}}]}`,
	}, "\n")

	var got []string
	text, err := DecodeDeltas(context.Background(), strings.NewReader(upstream), func(d string) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello ", text)
	assert.Equal(t, []string{"Hel", "lo "}, got)
}

func TestDecodeDeltasUpstreamError(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"error\":{\"code\":429,\"message\":\"Rate limit exceeded\"}}\n"

	text, err := DecodeDeltas(context.Background(), strings.NewReader(upstream), func(string) error { return nil })

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.RateLimited())
	assert.Equal(t, "Rate limit exceeded", perr.Message)
	assert.Equal(t, "a", text)
}

func TestDecodeDeltasStopsOnCallbackError(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"
	stop := errors.New("client gone")

	calls := 0
	_, err := DecodeDeltas(context.Background(), strings.NewReader(upstream), func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDecodeDeltasCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	_, err := DecodeDeltas(ctx, pr, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
