package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
	"github.com/xiaozhi/managerctl/internal/request"
)

type testConfig struct {
	server string
	token  string
}

func (c testConfig) GetServerURL() string { return c.server }
func (c testConfig) GetToken() string { return c.token }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperrors.Kind
		msg    string
		code   int
	}{
		{"success envelope", 200, `{"code":0,"msg":"success","data":{"id":1}}`, apperrors.KindUnknown, "", 0},
		{"success without envelope", 200, `[1,2]`, apperrors.KindUnknown, "", 0},
		{"empty success", 204, ``, apperrors.KindUnknown, "", 0},
		{"envelope session expired", 200, `{"code":401,"msg":"token invalid"}`, apperrors.KindAuth, "token invalid", 401},
		{"envelope business error", 200, `{"code":10001,"msg":"duplicate code"}`, apperrors.KindServer, "duplicate code", 10001},
		{"envelope error without msg", 200, `{"code":500}`, apperrors.KindServer, "server returned code 500", 500},
		{"http unauthorized", 401, ``, apperrors.KindAuth, "Unauthorized", 401},
		{"http forbidden", 403, `{"error":"no access"}`, apperrors.KindServer, "no access", 403},
		{"http forbidden envelope", 403, `{"code":403,"msg":"no permission"}`, apperrors.KindServer, "no permission", 403},
		{"not found", 404, ``, apperrors.KindServer, "server doesn't implement this endpoint", 404},
		{"server error json", 500, `{"result":0,"error":"boom"}`, apperrors.KindServer, "boom", 500},
		{"server error text", 502, "bad gateway\n", apperrors.KindServer, "bad gateway", 502},
		{"server error empty", 503, ``, apperrors.KindServer, "Service Unavailable", 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.status, []byte(tt.body))
			assert.Equal(t, tt.kind, out.Kind())
			if tt.kind == apperrors.KindUnknown {
				require.True(t, out.OK())
				assert.Equal(t, tt.body, out.Payload.String())
				return
			}
			require.False(t, out.OK())
			assert.Equal(t, tt.msg, out.Err.Error())
			assert.Equal(t, tt.code, apperrors.StatusCodeOf(out.Err))
		})
	}
}

func TestHTTPClientDo(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"id":1}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig{server: srv.URL, token: "tok-1"})
	spec, err := request.New().URL(srv.URL + "/xiaozhi/device/unbind").Method(http.MethodPost).
		Data(map[string]string{"deviceId": "D9"}).Build()
	require.NoError(t, err)

	out := client.Do(context.Background(), spec)
	require.True(t, out.OK(), "unexpected error: %v", out.Err)
	assert.Equal(t, int64(1), out.Payload.Get("data.id").Int())

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/xiaozhi/device/unbind", got.URL.Path)
	assert.Equal(t, "Bearer tok-1", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, spec.ID(), got.Header.Get("X-Request-Id"))
	assert.Equal(t, "managerctl", got.Header.Get("User-Agent"))
	assert.JSONEq(t, `{"deviceId":"D9"}`, string(gotBody))
}

func TestHTTPClientMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"msg":"` + err.Error() + `"}`))
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		fmt.Fprintf(w, `{"code":0,"data":{"name":%q,"size":%d}}`, hdr.Filename, len(content))
	}))
	defer srv.Close()

	form := request.NewForm().File("file", "devices.xlsx", "", []byte("abc"))
	spec, err := request.New().URL(srv.URL + "/device/bind/batch").Method(http.MethodPost).
		Data(form).Header(map[string]string{"Content-Type": "multipart/form-data"}).Build()
	require.NoError(t, err)

	out := NewClient(testConfig{}).Do(context.Background(), spec)
	require.True(t, out.OK(), "unexpected error: %v", out.Err)
	assert.Equal(t, "devices.xlsx", out.Payload.Get("data.name").String())
	assert.Equal(t, int64(3), out.Payload.Get("data.size").Int())
}

func TestHTTPClientExplicitAuthorizationWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer other", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	spec, err := request.New().URL(srv.URL).Header(map[string]string{"Authorization": "Bearer other"}).Build()
	require.NoError(t, err)
	out := NewClient(testConfig{token: "tok-1"}).Do(context.Background(), spec)
	assert.True(t, out.OK())
}

func TestHTTPClientFailures(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		spec, err := request.New().URL(srv.URL).Timeout(50 * time.Millisecond).Build()
		require.NoError(t, err)
		out := NewClient(testConfig{}).Do(context.Background(), spec)
		require.False(t, out.OK())
		assert.Equal(t, apperrors.KindTimeout, out.Kind())
		assert.ErrorIs(t, out.Err, request.ErrNetwork)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		spec, err := request.New().URL(url).Build()
		require.NoError(t, err)
		out := NewClient(testConfig{}).Do(context.Background(), spec)
		require.False(t, out.OK())
		assert.Equal(t, apperrors.KindNetwork, out.Kind())
	})
}

func TestHandlerTransport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device/bind/A1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":[]}`))
	})
	spec, err := request.New().URL("http://manager.local/device/bind/A1").Build()
	require.NoError(t, err)

	out := NewHandlerTransport(testConfig{token: "tok-1"}, mux).Do(context.Background(), spec)
	assert.True(t, out.OK())

	out = NewHandlerTransport(testConfig{}, mux).Do(context.Background(), spec)
	assert.Equal(t, apperrors.KindAuth, out.Kind())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = NewHandlerTransport(testConfig{}, mux).Do(ctx, spec)
	assert.Equal(t, apperrors.KindNetwork, out.Kind())
}
