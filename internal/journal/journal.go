// Package journal implements the append-only JSONL event log: the sole
// source of truth for projected state. Appends are open-append, write,
// fsync; reads decode line by line and tolerate a torn final line so a
// crashed writer never corrupts the log for readers.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// Append serializes each record to a JSON line and writes the concatenation
// to path in append mode, forcing a durable write before returning. The
// caller must hold the write lock. An empty slice is a no-op.
func Append(path string, records []events.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf strings.Builder
	for _, rec := range records {
		line, err := rec.MarshalJSON()
		if err != nil {
			return tsqerr.Wrap(tsqerr.CodeEventAppendFail, "encode event", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return tsqerr.Wrap(tsqerr.CodeEventAppendFail, "open journal", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.WriteString(buf.String()); err != nil {
		return tsqerr.Wrap(tsqerr.CodeEventAppendFail, "write journal", err)
	}
	if err := file.Sync(); err != nil {
		return tsqerr.Wrap(tsqerr.CodeEventAppendFail, "fsync journal", err)
	}
	return nil
}

// Read parses the full journal at path, returning the decoded records and a
// non-empty warning if the final line was malformed and dropped. A missing
// file returns an empty slice with no error. Any malformed line other than
// the last is fatal (EVENTS_CORRUPT, carrying its 1-based line number).
func Read(path string) ([]events.Record, string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", tsqerr.Wrap(tsqerr.CodeEventReadFailed, "open journal", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, "", tsqerr.Wrap(tsqerr.CodeEventReadFailed, "read journal", err)
	}

	// A single trailing empty line (the final newline's remainder) is not a
	// record; bufio.Scanner already excludes it since it never yields a
	// zero-length final token for a file ending in "\n". Guard anyway for a
	// journal ending in a blank line written by an external tool.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	records := make([]events.Record, 0, len(lines))
	for i, line := range lines {
		lineNo := i + 1
		isLast := i == len(lines)-1

		var rec events.Record
		if err := rec.UnmarshalJSON([]byte(line)); err != nil {
			if isLast {
				return records, fmt.Sprintf("journal: dropped malformed trailing line %d: %v", lineNo, err), nil
			}
			return nil, "", tsqerr.Newf(tsqerr.CodeEventsCorrupt, "journal line %d is malformed: %v", lineNo, err).WithDetails(map[string]any{"line": lineNo})
		}
		records = append(records, rec)
	}
	return records, "", nil
}
