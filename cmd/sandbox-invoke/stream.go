// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/bureau-foundation/sandbox-invoke/invoke"
)

// maxLineSize bounds a single event or context line.
const maxLineSize = 16 << 20

// readStream reads one payload per line from path, or from stdin when
// path is "-". Trailing blank lines are dropped; interior blank lines
// are kept as empty payloads so positions still pair events with
// contexts.
func readStream(path string, stdin io.Reader) ([][]byte, error) {
	reader := stdin
	if path != stdinPath {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}

	var lines [][]byte
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, bytes.Clone(bytes.TrimSpace(scanner.Bytes())))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// resultLine is the stdout form of one result.
type resultLine struct {
	RequestID        string          `json:"request_id"`
	ErrorType        *string         `json:"error_type"`
	DurationMS       float64         `json:"duration_ms"`
	BilledDurationMS int64           `json:"billed_duration_ms"`
	Payload          json.RawMessage `json:"payload"`
	Chained          bool            `json:"chained,omitempty"`
}

func newResultLine(result invoke.Result) (resultLine, error) {
	line := resultLine{
		RequestID:        result.InvocationID,
		DurationMS:       float64(result.Duration.Microseconds()) / 1000,
		BilledDurationMS: result.BilledDuration.Milliseconds(),
		Payload:          json.RawMessage("null"),
		Chained:          result.Request.Chained,
	}
	if result.ErrorType != "" {
		errorType := result.ErrorType
		line.ErrorType = &errorType
	}
	switch {
	case result.Payload == nil:
	case json.Valid(result.Payload):
		line.Payload = result.Payload
	default:
		// Not JSON: carry it as a string.
		encoded, err := json.Marshal(string(result.Payload))
		if err != nil {
			return resultLine{}, err
		}
		line.Payload = encoded
	}
	return line, nil
}

// writeResults prints each result as it arrives and returns the first
// error the sequence yields.
func writeResults(w io.Writer, results iter.Seq2[invoke.Result, error]) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for result, err := range results {
		if err != nil {
			return err
		}
		line, err := newResultLine(result)
		if err != nil {
			return fmt.Errorf("formatting result %s: %w", result.InvocationID, err)
		}
		if err := encoder.Encode(line); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	return nil
}
