package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbasic/microbasic/parser"
	"github.com/mbasic/microbasic/program"
	"github.com/mbasic/microbasic/runtime"
)

// runResponse is what /run sends back: captured console output, plus an
// error message and originating line number when the program stopped
// abnormally.
type runResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

func runHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}

	store := program.NewStore()
	for _, raw := range strings.Split(buf.String(), "\n") {
		if err := loadLine(store, raw); err != nil {
			writeResponse(w, runResponse{Error: err.Error()})
			return
		}
	}

	compiled, err := program.Compile(store, parser.NewRegistry())
	if err != nil {
		writeResponse(w, runResponse{Error: err.Error()})
		return
	}

	console := &bufferedIO{}
	rt := runtime.New(console, newMemFS())
	if err := rt.Run(compiled); err != nil {
		writeResponse(w, runResponse{Output: console.out.String(), Error: err.Error()})
		return
	}
	writeResponse(w, runResponse{Output: console.out.String()})
}

// loadLine splits "NNN statement text" into a line number and source,
// storing it in store. A blank line is ignored.
func loadLine(store *program.Store, raw string) error {
	line := strings.TrimRight(raw, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("line %q has no leading line number", line)
	}
	src := ""
	if len(fields) == 2 {
		src = fields[1]
	}
	store.SetLine(n, src)
	return nil
}

func writeResponse(w http.ResponseWriter, resp runResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
