package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"n": 1}) })
	r.GET("/final", func(c *gin.Context) {
		FailWithData(c, http.StatusConflict, ErrAttemptAlreadyFinalized, gin.H{"score": 7})
	})
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newEngine()

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when missing", "", false},
		{"reused when sane", "trace-abc-123", true},
		{"replaced when too long", strings.Repeat("x", maxRequestIDLength+1), false},
		{"replaced when it has spaces", "bad id", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			require.NotEmpty(t, got)
			if tt.reuse {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
			}

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, got, body.Metadata.RequestID)
		})
	}
}

func TestFailWithData_CarriesPayload(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/final", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Data  map[string]float64 `json:"data"`
		Error ErrorBody          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrAttemptAlreadyFinalized, body.Error.Code)
	assert.Equal(t, GetMessage(ErrAttemptAlreadyFinalized), body.Error.Message)
	assert.Equal(t, 7.0, body.Data["score"])
}
