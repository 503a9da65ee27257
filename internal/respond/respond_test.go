package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "busy", body["error"])
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(log.WithContext(r.Context()))

	w := failingWriter{httptest.NewRecorder()}
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "connection reset")
	assert.Contains(t, logs.String(), "writing response body")
}

func TestJSONLogsUnencodableValue(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(log.WithContext(r.Context()))

	JSON(httptest.NewRecorder(), r, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	assert.Contains(t, logs.String(), "writing response body")
}
