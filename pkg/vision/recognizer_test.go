package vision

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilkoid/specmatch/pkg/config"
	"github.com/ilkoid/specmatch/pkg/llm"
	"github.com/ilkoid/specmatch/pkg/recognition"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider отдаёт заранее заданные ответы по очереди.
type fakeProvider struct {
	replies []reply
	calls   int
	last    []llm.Message
	opts    llm.GenerateOptions
}

type reply struct {
	content string
	err     error
}

func (f *fakeProvider) Generate(_ context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	f.last = messages
	f.opts = llm.Apply(llm.GenerateOptions{}, opts...)
	r := f.replies[min(f.calls, len(f.replies)-1)]
	f.calls++
	if r.err != nil {
		return llm.Message{}, r.err
	}
	return llm.Message{Role: llm.RoleAssistant, Content: r.content}, nil
}

func newTestRecognizer(t *testing.T, p llm.Provider, attempts int) *Recognizer {
	t.Helper()
	r, err := New(p, config.VisionConfig{RetryAttempts: attempts}, WithBackoff(0))
	require.NoError(t, err)
	return r
}

func TestRecognize_Success(t *testing.T) {
	p := &fakeProvider{replies: []reply{{content: `{"phoneName":"iPhone 15","caseName":"Pro 3","specs":[{"category":"外框","value":"透明"}]}`}}}
	r := newTestRecognizer(t, p, 2)

	res, err := r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", res.PhoneName)
	assert.Equal(t, []recognition.RecognizedSpec{{Category: "外框", Value: "透明"}}, res.Specs)

	require.Len(t, p.last, 2)
	assert.Equal(t, llm.RoleSystem, p.last[0].Role)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, p.last[1].Images)
	assert.Equal(t, llm.FormatJSONObject, p.opts.Format)
}

func TestRecognize_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{replies: []reply{
		{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}},
		{content: "not json at all"},
		{content: `[{"category":"按鍵","value":"金"}]`},
	}}
	r := newTestRecognizer(t, p, 3)

	res, err := r.Recognize(context.Background(), "https://cdn.example.com/shot.png")
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	assert.Len(t, res.Specs, 1)
}

func TestRecognize_AuthErrorIsNotRetried(t *testing.T) {
	p := &fakeProvider{replies: []reply{
		{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}},
		{content: `{"specs":[]}`},
	}}
	r := newTestRecognizer(t, p, 3)

	_, err := r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ErrAuthFailed, verr.Type)
	assert.Equal(t, 1, p.calls)
}

func TestRecognize_ExhaustedAttempts(t *testing.T) {
	p := &fakeProvider{replies: []reply{{content: "nope"}}}
	r := newTestRecognizer(t, p, 2)

	_, err := r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	assert.Equal(t, ErrBadResponse, Classify(err))
	assert.ErrorIs(t, err, recognition.ErrNoJSON)
}

func TestRecognize_EmptyImage(t *testing.T) {
	r := newTestRecognizer(t, &fakeProvider{}, 1)
	_, err := r.Recognize(context.Background(), "")
	assert.Error(t, err)
}

func TestNew_PromptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  自訂提示  \n"), 0o644))

	p := &fakeProvider{replies: []reply{{content: `{"specs":[]}`}}}
	r, err := New(p, config.VisionConfig{PromptFile: path})
	require.NoError(t, err)
	_, err = r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "自訂提示", p.last[0].Content)

	_, err = New(&fakeProvider{}, config.VisionConfig{PromptFile: filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)

	_, err = New(nil, config.VisionConfig{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"forbidden", &openai.APIError{HTTPStatusCode: http.StatusForbidden}, ErrAuthFailed},
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, ErrRateLimit},
		{"gateway timeout", &openai.RequestError{HTTPStatusCode: http.StatusGatewayTimeout, Err: errors.New("x")}, ErrTimeout},
		{"unavailable", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, ErrNetwork},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"plain", errors.New("boom"), ErrUnknown},
		{"nil", nil, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorType_Strings(t *testing.T) {
	assert.Equal(t, "rate_limit", ErrRateLimit.String())
	assert.NotEmpty(t, ErrAuthFailed.HumanMessage())
	assert.False(t, ErrAuthFailed.Retryable())
	assert.True(t, ErrNetwork.Retryable())
}

func TestRecognize_WritesTrace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	p := &fakeProvider{replies: []reply{
		{content: "no json"},
		{content: `{"specs":[{"category":"外框","value":"透明"}]}`},
	}}
	r, err := New(p, config.VisionConfig{RetryAttempts: 2}, WithBackoff(0), WithTraceDir(dir))
	require.NoError(t, err)

	_, err = r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"error_type": "bad_response"`)
	assert.Contains(t, body, `"response": "no json"`)
	assert.Contains(t, body, `"specs": 1`)
}

func TestRecognize_CategoriesHint(t *testing.T) {
	p := &fakeProvider{replies: []reply{{content: `{"specs":[]}`}}}
	r := newTestRecognizer(t, p, 1)

	_, err := r.Recognize(context.Background(), "data:image/png;base64,AAAA", "外框", "鏡頭框")
	require.NoError(t, err)
	assert.Contains(t, p.last[0].Content, "外框、鏡頭框")

	_, err = r.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.NotContains(t, p.last[0].Content, "此商品可用的規格類別")
}

func TestNew_YAMLPromptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vision.yaml")
	body := `config:
  model: glm-vision
  temperature: 0.2
messages:
  - role: system
    content: "只回傳 JSON。{{if .Categories}} 類別：{{join .Categories \",\"}}{{end}}"
  - role: user
    content: "看圖"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p := &fakeProvider{replies: []reply{{content: `{"specs":[]}`}}}
	r, err := New(p, config.VisionConfig{PromptFile: path})
	require.NoError(t, err)

	_, err = r.Recognize(context.Background(), "https://cdn.example.com/a.png", "外框", "按鍵")
	require.NoError(t, err)

	require.Len(t, p.last, 2)
	assert.Equal(t, "只回傳 JSON。 類別：外框,按鍵", p.last[0].Content)
	assert.Equal(t, "看圖", p.last[1].Content)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, p.last[1].Images)
	assert.Equal(t, "glm-vision", p.opts.Model)
	assert.InDelta(t, 0.2, p.opts.Temperature, 1e-9)
	assert.Equal(t, llm.FormatJSONObject, p.opts.Format)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("messages:\n  - role: robot\n    content: x\n"), 0o644))
	_, err = New(&fakeProvider{}, config.VisionConfig{PromptFile: bad})
	assert.Error(t, err)
}
