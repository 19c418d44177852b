package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/aocd/source"
)

const testPassword = "correct-horse"

// MockSource is a mock implementation of source.Source for testing
type MockSource struct {
	mu         sync.Mutex
	InputFunc  func(year, day int) (string, error)
	SubmitFunc func(year, day, part int, answer source.Answer) (bool, error)
	submitted  []source.Answer
}

func (m *MockSource) Input(_ context.Context, year, day int) (string, error) {
	if m.InputFunc != nil {
		return m.InputFunc(year, day)
	}
	return fmt.Sprintf("input %d/%d\n", year, day), nil
}

func (m *MockSource) Submit(_ context.Context, year, day, part int, answer source.Answer) (bool, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, answer)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(year, day, part, answer)
	}
	return answer.Matches("42"), nil
}

func (m *MockSource) submissions() []source.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]source.Answer(nil), m.submitted...)
}

func serve(t *testing.T, h http.Handler, method, target, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authenticated {
		req.SetBasicAuth(Username, testPassword)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAuthentication(t *testing.T) {
	h := NewHandler(&MockSource{}, testPassword, true, zaptest.NewLogger(t))

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"NoCredentials", func(*http.Request) {}},
		{"WrongPassword", func(r *http.Request) { r.SetBasicAuth(Username, "guess") }},
		{"WrongUser", func(r *http.Request) { r.SetBasicAuth("admin", testPassword) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range []string{"/getInput?year=2021&day=7", "/submit", "/elsewhere"} {
				req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
				tt.setup(req)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
				assert.Equal(t, `Basic realm="sandbox"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestHandlerGetInput(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodGet, "/getInput?year=2021&day=7", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))

		direct, err := src.Input(t.Context(), 2021, 7)
		require.NoError(t, err)
		assert.Equal(t, direct, rec.Body.String())
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		h := NewHandler(&MockSource{}, testPassword, false, zaptest.NewLogger(t))

		for _, target := range []string{"/getInput", "/getInput?year=abc&day=1", "/getInput?year=2021&day=1.5"} {
			rec := serve(t, h, http.MethodGet, target, "", true)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
	})

	t.Run("UpstreamError", func(t *testing.T) {
		src := &MockSource{InputFunc: func(int, int) (string, error) {
			return "", errors.New("site unavailable")
		}}
		h := NewHandler(src, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodGet, "/getInput?year=2021&day=7", "", true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Panic", func(t *testing.T) {
		src := &MockSource{InputFunc: func(int, int) (string, error) {
			panic("unexpected")
		}}
		h := NewHandler(src, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodGet, "/getInput?year=2021&day=7", "", true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlerSubmit(t *testing.T) {
	validBody := `{"year":2021,"day":7,"part":1,"solution":42}`

	t.Run("DisabledIsForbidden", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodPost, "/submit", validBody, true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, src.submissions())
	})

	t.Run("Enabled", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, true, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodPost, "/submit", validBody, true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"correct":true}`, rec.Body.String())

		rec = serve(t, h, http.MethodPost, "/submit", `{"year":2021,"day":7,"part":2,"solution":"abc"}`, true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"correct":false}`, rec.Body.String())

		assert.Equal(t, []source.Answer{source.Int(42), source.String("abc")}, src.submissions())
	})

	t.Run("InvalidBody", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, true, zaptest.NewLogger(t))

		bodies := []string{
			``,
			`not json`,
			`{"year":"2021","day":7,"part":1,"solution":42}`,
			`{"day":7,"part":1,"solution":42}`,
			`{"year":2021,"day":7,"part":1}`,
			`{"year":2021,"day":7,"part":1,"solution":null}`,
			`{"year":2021,"day":7,"part":1,"solution":true}`,
			`{"year":2021,"day":7,"part":1,"solution":""}`,
		}
		for _, body := range bodies {
			rec := serve(t, h, http.MethodPost, "/submit", body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Empty(t, src.submissions())
	})

	t.Run("UpstreamError", func(t *testing.T) {
		src := &MockSource{SubmitFunc: func(int, int, int, source.Answer) (bool, error) {
			return false, source.ErrUnexpectedResponse
		}}
		h := NewHandler(src, testPassword, true, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodPost, "/submit", validBody, true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlerNotFound(t *testing.T) {
	h := NewHandler(&MockSource{}, testPassword, true, zaptest.NewLogger(t))

	rec := serve(t, h, http.MethodGet, "/unknown", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestHandlerRoutesByPath(t *testing.T) {
	t.Run("GetInputWithPost", func(t *testing.T) {
		h := NewHandler(&MockSource{}, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodPost, "/getInput?year=2021&day=1", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "input 2021/1\n", rec.Body.String())
	})

	t.Run("SubmitWithGetWhenDisabled", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, false, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodGet, "/submit", "", true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, src.submissions())
	})

	t.Run("SubmitWithGetWhenEnabled", func(t *testing.T) {
		src := &MockSource{}
		h := NewHandler(src, testPassword, true, zaptest.NewLogger(t))

		rec := serve(t, h, http.MethodGet, "/submit", "", true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, src.submissions())
	})
}
