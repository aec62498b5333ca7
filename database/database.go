// Package database holds the read-only key/value mapping a servent answers from.
package database

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var ErrMissingValue = errors.New("line has a key but no value")

// Database is immutable once built, so concurrent lookups are safe.
type Database struct {
	entries map[string]string
}

// New builds a Database from a copy of entries.
func New(entries map[string]string) *Database {
	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Database{entries: copied}
}

// Load reads a dictionary file. See Parse for the format.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer f.Close()

	db, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return db, nil
}

// Parse reads "key value..." lines. The key is the first whitespace-separated
// field and the value is the trimmed rest of the line. Lines starting with '#'
// and blank lines are skipped. A repeated key keeps the last value.
func Parse(r io.Reader) (*Database, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			key, value = line[:i], strings.TrimSpace(line[i+1:])
		}
		if value == "" {
			return nil, fmt.Errorf("line %d: %w: %q", lineNum, ErrMissingValue, key)
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNum+1, err)
	}
	return &Database{entries: entries}, nil
}

// Lookup returns the value stored for key.
func (db *Database) Lookup(key string) (string, bool) {
	if db == nil {
		return "", false
	}
	v, ok := db.entries[key]
	return v, ok
}

// Len returns the number of keys.
func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	return len(db.entries)
}

// Keys returns every key in sorted order.
func (db *Database) Keys() []string {
	if db == nil {
		return nil
	}
	keys := make([]string, 0, len(db.entries))
	for k := range db.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
