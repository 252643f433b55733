package httpapi_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/httpapi"
)

type conflictErr struct{}

func (conflictErr) Error() string { return "duplicate row" }
func (conflictErr) HTTPStatus() int { return http.StatusConflict }
func (conflictErr) ErrorCode() string { return "DUPLICATE" }

func decode(t *testing.T, rec *httptest.ResponseRecorder) httpapi.ErrorEnvelope {
	t.Helper()
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteErr(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, httpapi.WriteErr(rec, fmt.Errorf("save: %w", conflictErr{}), "INTERNAL"))
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.Equal(t, "DUPLICATE", env.Code)
	require.Equal(t, "save: duplicate row", env.Message)

	rec = httptest.NewRecorder()
	require.NoError(t, httpapi.WriteErr(rec, errors.New("dial tcp: refused"), "INTERNAL"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env = decode(t, rec)
	require.Equal(t, "INTERNAL", env.Code)
	require.Equal(t, "internal error", env.Message)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestWriteJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, httpapi.WriteJSON(rec, http.StatusNoContent, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}
