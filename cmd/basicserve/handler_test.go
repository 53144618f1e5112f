package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func postProgram(t *testing.T, src string) runResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(src))
	rec := httptest.NewRecorder()
	runHandler(rec, req)

	var resp runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRunHandlerCapturesPrintOutput(t *testing.T) {
	resp := postProgram(t, "10 PRINT 1+2\n20 PRINT \"DONE\"")
	require.Empty(t, resp.Error)
	require.Equal(t, "3\nDONE\n", resp.Output)
}

func TestRunHandlerReportsRuntimeErrorWithLine(t *testing.T) {
	resp := postProgram(t, "10 X = 1/0")
	require.Contains(t, resp.Error, "Division by zero")
	require.Contains(t, resp.Error, "Line 10")
}

func TestRunHandlerReportsParseErrorWithLine(t *testing.T) {
	resp := postProgram(t, "10 X = ")
	require.NotEmpty(t, resp.Error)
	require.Contains(t, resp.Error, "Line 10")
}

func TestLoadLineRejectsMissingLineNumber(t *testing.T) {
	resp := postProgram(t, "PRINT 1")
	require.Contains(t, resp.Error, "no leading line number")
}
