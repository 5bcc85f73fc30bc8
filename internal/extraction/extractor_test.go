package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/llm"
)

type fakeProvider struct {
	mu      sync.Mutex
	reqs    []llm.CompletionRequest
	respond func(req llm.CompletionRequest) (string, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	content, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content}, nil
}

func replying(content string) *fakeProvider {
	return &fakeProvider{respond: func(llm.CompletionRequest) (string, error) { return content, nil }}
}

func marshal(t *testing.T, r invoice.Record) string {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return string(data)
}

const plain = `{"invoice_number":"X","total":1500,"items":[{"description":"A","total":5}]}`

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{plain, plain},
		{"```json\n" + plain + "\n```", plain},
		{"  ```json" + plain + "```  ", plain},
		{"```\n" + plain + "\n```", plain},
		{plain + "\n```", plain},
		{"```json\n" + plain, plain},
		{"no fences here", "no fences here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeFence(tt.in), tt.in)
	}
}

func TestFencedResponseParsesLikeUnwrapped(t *testing.T) {
	ctx := context.Background()
	unwrapped := New(replying(plain), Options{}, nil).Extract(ctx, "text", "a.pdf")
	fenced := New(replying("```json\n"+plain+"\n```"), Options{}, nil).Extract(ctx, "text", "a.pdf")

	require.False(t, unwrapped.IsError())
	assert.Equal(t, marshal(t, unwrapped), marshal(t, fenced))
	assert.Equal(t, "a.pdf", fenced.SourceFile())
	assert.Equal(t, []string{"invoice_number", "total", "items", "source_file"}, fenced.Keys())
}

func TestNonJSONOutputBecomesErrorRecord(t *testing.T) {
	raw := "Sorry, I could not find an invoice in this text."
	r := New(replying(raw), Options{}, nil).Extract(context.Background(), "text", "b.png")

	require.True(t, r.IsError())
	assert.True(t, strings.HasPrefix(r.ErrorMessage(), "JSON parse error: "), r.ErrorMessage())
	got, ok := r.Get(invoice.KeyRawResponse)
	require.True(t, ok)
	assert.Equal(t, raw, got)
	assert.Equal(t, "b.png", r.SourceFile())
}

func TestRawResponseKeepsFences(t *testing.T) {
	raw := "```json\n{\"total\": \n```"
	r := New(replying(raw), Options{}, nil).Extract(context.Background(), "text", "c.pdf")

	require.True(t, r.IsError())
	got, _ := r.Get(invoice.KeyRawResponse)
	assert.Equal(t, raw, got)
}

func TestNonObjectJSONBecomesErrorRecord(t *testing.T) {
	r := New(replying(`[{"total": 1}]`), Options{}, nil).Extract(context.Background(), "text", "d.pdf")

	require.True(t, r.IsError())
	assert.Contains(t, r.ErrorMessage(), "array")
}

func TestCompletionFailureBecomesErrorRecord(t *testing.T) {
	p := &fakeProvider{respond: func(llm.CompletionRequest) (string, error) {
		return "", errors.New("429 quota exceeded")
	}}
	r := New(p, Options{}, nil).Extract(context.Background(), "text", "e.pdf")

	require.True(t, r.IsError())
	assert.Contains(t, r.ErrorMessage(), "429 quota exceeded")
	assert.Equal(t, `{"error":"completion service failure: 429 quota exceeded","raw_response":null,"source_file":"e.pdf"}`, marshal(t, r))
}

func TestSourceFileOverridesModelValue(t *testing.T) {
	r := New(replying(`{"source_file":"made-up.pdf","total":1}`), Options{}, nil).Extract(context.Background(), "text", "real.pdf")

	assert.Equal(t, "real.pdf", r.SourceFile())
	assert.Equal(t, []string{"source_file", "total"}, r.Keys())
}

func TestExtractBuildsRequest(t *testing.T) {
	p := replying(plain)
	New(p, Options{Model: "gpt-4-turbo-preview", Temperature: 0.1, MaxTokens: 4000}, nil).
		Extract(context.Background(), "ACME Corp\nTotal: 10.00", "f.pdf")

	require.Len(t, p.reqs, 1)
	req := p.reqs[0]
	assert.Equal(t, "gpt-4-turbo-preview", req.Model)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 4000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "You are an expert invoice data extractor. Always return valid JSON.", req.Messages[0].Content)
	user := req.Messages[1].Content
	assert.Contains(t, user, invoice.Schema)
	assert.Contains(t, user, "Invoice Text:\nACME Corp\nTotal: 10.00\n\nJSON Output:")
	assert.Contains(t, user, "YYYY-MM-DD")
	assert.Contains(t, user, "null")
}

func TestExtractBatchSkipsFailedDocumentsAndKeepsOrder(t *testing.T) {
	p := &fakeProvider{respond: func(req llm.CompletionRequest) (string, error) {
		user := req.Messages[1].Content
		switch {
		case strings.Contains(user, "first"):
			return `{"invoice_number":"1"}`, nil
		case strings.Contains(user, "third"):
			return "garbage", nil
		default:
			return `{"invoice_number":"4"}`, nil
		}
	}}
	first, third, fourth := "first", "third", "fourth"
	docs := []invoice.ProcessedDocument{
		{FileName: "1.pdf", RawText: &first},
		{FileName: "2.pdf", Error: "OCR failed: boom"},
		{FileName: "3.pdf", RawText: &third},
		{FileName: "4.pdf", RawText: &fourth},
	}

	calls := 0
	records := New(p, Options{Concurrency: 2}, nil).ExtractBatch(context.Background(), docs, func(done, total int, name string) {
		calls++
		assert.Equal(t, 3, total)
	})

	require.Len(t, records, 3)
	assert.Equal(t, "1.pdf", records[0].SourceFile())
	assert.Equal(t, "3.pdf", records[1].SourceFile())
	assert.True(t, records[1].IsError())
	assert.Equal(t, "4.pdf", records[2].SourceFile())
	assert.Equal(t, "4", records[2].String("invoice_number"))
	assert.Equal(t, 3, calls)
	assert.Len(t, p.reqs, 3)
}
