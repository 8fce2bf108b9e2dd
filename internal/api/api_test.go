package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/specmatch/internal/app"
	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
	"github.com/ilkoid/specmatch/pkg/vision"
)

func init() {
	utils.SetOutput(nil)
}

type fakeService struct {
	lastReq    app.RecognizeRequest
	recognize  func(app.RecognizeRequest) (*app.RecognizeResult, error)
	options    map[string]store.Snapshot
	toggled    []string
	mapped     []recognition.RecognizedSpec
	toggleErr  error
	panicOnMap bool
}

func (f *fakeService) ProductOptions(_ context.Context, productID string) (store.Snapshot, error) {
	snap, ok := f.options[productID]
	if !ok {
		return store.Snapshot{}, store.WrapNotFound("product", productID)
	}
	return snap, nil
}

func (f *fakeService) MapSpecs(_ context.Context, productID string, specs []recognition.RecognizedSpec, prior recognition.SelectionState) (recognition.Result, error) {
	if f.panicOnMap {
		panic("boom")
	}
	f.mapped = specs
	next := prior.Clone()
	next["devilcase_pro3:attr1"] = "o1"
	return recognition.Result{NextSelection: next, TextFallback: recognition.TextFallbackReport{}}, nil
}

func (f *fakeService) Recognize(_ context.Context, req app.RecognizeRequest) (*app.RecognizeResult, error) {
	f.lastReq = req
	return f.recognize(req)
}

func (f *fakeService) ToggleGroup(_ context.Context, productID, groupID string, checked bool) (catalog.Product, error) {
	if f.toggleErr != nil {
		return catalog.Product{}, f.toggleErr
	}
	f.toggled = append(f.toggled, groupID)
	tags := []string{"base"}
	if checked {
		tags = append(tags, "magsafe")
	}
	return catalog.Product{ID: productID, CompatibilityTags: tags, LinkedGroupIDs: []string{groupID}}, nil
}

func newTestServer(svc *fakeService, opts Options) http.Handler {
	if opts.BuildID == "" {
		opts.BuildID = "build-test"
	}
	return NewServer(svc, opts).Handler()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "shot.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestHealthAndRoot(t *testing.T) {
	h := newTestServer(&fakeService{}, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	_, err := time.Parse(time.RFC3339, body["time"].(string))
	assert.NoError(t, err)
	assert.Equal(t, "build-test", rec.Header().Get("x-ppbears-backend"))
	assert.Equal(t, "build-test", rec.Header().Get("x-backend"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "build-test", body["buildId"])
	assert.Equal(t, Version, body["version"])
	assert.Empty(t, rec.Header().Get("x-backend"), "build headers only on /api/")
}

func TestNotFoundEnvelope(t *testing.T) {
	h := newTestServer(&fakeService{}, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeNotFound, body["errorCode"])
	assert.Equal(t, "API Route not found: /api/nope", body["message"])
	assert.Equal(t, "build-test", body["buildId"])
}

func TestRecognizeMultipart(t *testing.T) {
	svc := &fakeService{recognize: func(req app.RecognizeRequest) (*app.RecognizeResult, error) {
		return &app.RecognizeResult{
			Recognized:   []recognition.RecognizedSpec{{Category: "外框", Value: "透明"}},
			PhoneName:    "iPhone 15",
			Selection:    recognition.SelectionState{"devilcase_pro3:attr1": "o1"},
			TextFallback: recognition.TextFallbackReport{},
			URL:          "https://s3/shot.png",
		}, nil
	}}
	h := newTestServer(svc, Options{})

	body, ct := multipartBody(t, map[string]string{
		"productId": " p_15 ",
		"selection": `{"engrave:ca:t1":"hi"}`,
	}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/recognize", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "p_15", svc.lastReq.ProductID)
	assert.Equal(t, []byte("png-bytes"), svc.lastReq.Image)
	assert.Equal(t, "hi", svc.lastReq.Selection["engrave:ca:t1"])

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "iPhone 15", out["phoneName"])
	assert.Equal(t, "https://s3/shot.png", out["url"])
	assert.Equal(t, map[string]any{"devilcase_pro3:attr1": "o1"}, out["selection"])
}

func TestRecognizeJSONBody(t *testing.T) {
	svc := &fakeService{recognize: func(req app.RecognizeRequest) (*app.RecognizeResult, error) {
		return &app.RecognizeResult{}, nil
	}}
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/recognize",
		strings.NewReader(`{"imageUrl":"https://img/x.png","productId":"p_1","selection":{"a":"b"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://img/x.png", svc.lastReq.ImageURL)
	assert.Equal(t, "p_1", svc.lastReq.ProductID)
	assert.Nil(t, svc.lastReq.Image)
}

func TestRecognizeBadSelection(t *testing.T) {
	svc := &fakeService{recognize: func(app.RecognizeRequest) (*app.RecognizeResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	h := newTestServer(svc, Options{})

	body, ct := multipartBody(t, map[string]string{"selection": "not json"}, []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/recognize", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, decode(t, rec)["errorCode"])
}

func TestRecognizeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no image", app.ErrNoImage, http.StatusBadRequest, CodeUploadFailed},
		{"bad url", app.ErrBadImageURL, http.StatusBadRequest, CodeUploadFailed},
		{"bad image", errors.Join(app.ErrBadImage, errors.New("decode")), http.StatusBadRequest, CodeUploadFailed},
		{"fetch", app.ErrImageFetch, http.StatusBadRequest, CodeUploadFailed},
		{"too large", app.ErrImageTooLarge, http.StatusRequestEntityTooLarge, CodeUploadFailed},
		{"unknown product", store.WrapNotFound("product", "p_x"), http.StatusNotFound, CodeNotFound},
		{"vision rate limit", &vision.Error{Type: vision.ErrRateLimit, Err: errors.New("429")}, http.StatusTooManyRequests, CodeAIError},
		{"vision auth", &vision.Error{Type: vision.ErrAuthFailed, Err: errors.New("401")}, http.StatusBadGateway, CodeAIError},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeAIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{recognize: func(app.RecognizeRequest) (*app.RecognizeResult, error) {
				return nil, tt.err
			}}
			h := newTestServer(svc, Options{})

			body, ct := multipartBody(t, map[string]string{"imageUrl": "https://x"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/ai/recognize", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.wantCode, out["errorCode"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestVisionErrorUsesHumanMessage(t *testing.T) {
	verr := &vision.Error{Type: vision.ErrTimeout, Err: context.DeadlineExceeded}
	status, code, msg := classifyRecognizeError(verr)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, CodeAIError, code)
	assert.Equal(t, vision.ErrTimeout.HumanMessage(), msg)
}

func TestProductOptions(t *testing.T) {
	svc := &fakeService{options: map[string]store.Snapshot{
		"p_15": {
			Product: catalog.Product{ID: "p_15", Name: "iPhone 15 Case"},
			Groups:  []catalog.OptionGroup{{RawOptionGroup: catalog.RawOptionGroup{ID: "g_frame", Name: "外框"}}},
		},
	}}
	h := newTestServer(svc, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p_15/options", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	groups := out["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "g_frame", groups[0].(map[string]any)["id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p_missing/options", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product not found", decode(t, rec)["message"])
}

func TestMapSpecs(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/products/p_15/map",
		strings.NewReader(`{"specs":[{"category":"外框","value":"透明"}],"selection":{"keep":"me"}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.mapped, 1)
	out := decode(t, rec)
	assert.Equal(t, map[string]any{"keep": "me", "devilcase_pro3:attr1": "o1"}, out["selection"])
}

func TestToggle(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/products/p_15/groups/g_pack/toggle", strings.NewReader(`{"checked":true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"g_pack"}, svc.toggled)
	product := decode(t, rec)["product"].(map[string]any)
	assert.Equal(t, []any{"base", "magsafe"}, product["compatibilityTags"])

	t.Run("missing checked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/p_15/groups/g_pack/toggle", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown group", func(t *testing.T) {
		svc.toggleErr = store.WrapNotFound("group", "g_x")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/p_15/groups/g_x/toggle", strings.NewReader(`{"checked":false}`)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "group not found", decode(t, rec)["message"])
	})

	t.Run("store failure", func(t *testing.T) {
		svc.toggleErr = errors.New("disk full")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/p_15/groups/g_x/toggle", strings.NewReader(`{"checked":false}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, CodeInternal, decode(t, rec)["errorCode"])
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newTestServer(&fakeService{panicOnMap: true}, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/p_15/map", strings.NewReader(`{"specs":[]}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, CodeInternal, out["errorCode"])
	assert.Equal(t, "boom", out["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeService{}, Options{RateLimit: 1, BurstLimit: 1})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ai/recognize", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := newTestServer(&fakeService{}, Options{RateLimit: 1, BurstLimit: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limit is per IP")
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	require.NotNil(t, rl)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	assert.Equal(t, 0, rl.Cleanup(time.Now()))
	assert.Equal(t, 2, rl.Cleanup(time.Now().Add(10*time.Minute)))

	var disabled *RateLimiter
	assert.Nil(t, NewRateLimiter(0, 5))
	assert.True(t, disabled.Allow("x"))
}
