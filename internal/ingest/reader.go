package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadRecords decodes a detection log from r. The log may be a single JSON
// array of records or a stream of newline-delimited JSON objects.
func ReadRecords(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read detection log: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var records []Record
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode detection log array: %w", err)
		}
		return records, nil
	}

	var records []Record
	for n := 1; ; n++ {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode detection log record %d: %w", n, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// peekNonSpace skips leading whitespace and returns the next byte without
// consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if strings.IndexByte(" \t\r\n", b[0]) < 0 {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}

// LoadFile reads a detection log from a .json, .jsonl or .ndjson file.
func LoadFile(path string) ([]Record, error) {
	cleanPath := filepath.Clean(path)
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json", ".jsonl", ".ndjson":
	default:
		return nil, fmt.Errorf("detection log must have .json, .jsonl or .ndjson extension, got %q", ext)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}

// WriteRecords encodes records as JSON lines.
func WriteRecords(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", records[i].ID, err)
		}
	}
	return nil
}
