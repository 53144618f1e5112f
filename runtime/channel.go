package runtime

import (
	"bufio"
	"io"
	"strings"

	"github.com/mbasic/microbasic/token"
)

// channel is one OPEN-ed sequential file, addressed by its # number.
type channel struct {
	mode token.Type // token.OUTPUT, token.APPEND, or token.INPUT
	w    io.WriteCloser
	rc   io.ReadCloser
	r    *bufio.Reader

	// fields holds INPUT values already split from a line read from
	// this channel but not yet consumed by a target.
	fields []string
}

func closeChannel(ch *channel) {
	if ch.w != nil {
		ch.w.Close()
	}
	if ch.rc != nil {
		ch.rc.Close()
	}
}

// splitFields splits a line read from an INPUT file on commas that
// fall outside double-quoted fields. A doubled "" inside a quoted
// field collapses to a literal ", and a field entirely wrapped in
// quotes has them stripped.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	for i, f := range fields {
		if len(f) >= 2 && f[0] == '"' && f[len(f)-1] == '"' {
			fields[i] = f[1 : len(f)-1]
		}
	}
	return fields
}
