// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package kv parses line-oriented `KEY=value` records.
//
// The format is shared by sysfs `uevent` files and the probe report.
package kv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSyntax is returned for lines which are not `key=value` pairs.
var ErrSyntax = errors.New("invalid key=value line")

// Record is a single parsed line.
type Record struct {
	Key   string
	Value string

	// Line is the 1-based line number in the input.
	Line int
}

// Records is an ordered list of records.
type Records []Record

// Parse reads all records from r.
//
// Empty lines are skipped, the value is everything after the first '='.
// Keys are whitespace-trimmed, values are kept verbatim except for the trailing '\r'.
func Parse(r io.Reader) (Records, error) {
	var records Records

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrSyntax, line, text)
		}

		records = append(records, Record{Key: key, Value: value, Line: line})
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line+1, err)
		}

		return nil, err
	}

	return records, nil
}

// ParseString is Parse for in-memory input.
func ParseString(s string) (Records, error) {
	return Parse(strings.NewReader(s))
}

// Lookup returns the value of the first record with the given key.
func (r Records) Lookup(key string) (string, bool) {
	for _, rec := range r {
		if rec.Key == key {
			return rec.Value, true
		}
	}

	return "", false
}

// Keys returns record keys in input order.
func (r Records) Keys() []string {
	keys := make([]string, 0, len(r))

	for _, rec := range r {
		keys = append(keys, rec.Key)
	}

	return keys
}

// Write formats a single record as a line.
func Write(w io.Writer, key, value string) error {
	_, err := fmt.Fprintf(w, "%s=%s\n", key, value)

	return err
}
