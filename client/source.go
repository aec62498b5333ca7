package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RenatoUtsch/redes-tp3/logger"
)

// KeySource yields the keys to look up, one at a time. ok is false once the
// source is exhausted.
type KeySource interface {
	Next() (key string, ok bool)
}

// LineSource reads one key per line, printing a prompt before each read.
// Blank lines are skipped.
type LineSource struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

func NewLineSource(r io.Reader, prompt io.Writer) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r), prompt: prompt}
}

func (s *LineSource) Next() (string, bool) {
	for {
		if s.prompt != nil {
			fmt.Fprint(s.prompt, "-- Key: ")
		}
		if !s.scanner.Scan() {
			return "", false
		}
		if key := strings.TrimRight(s.scanner.Text(), "\r"); strings.TrimSpace(key) != "" {
			return key, true
		}
	}
}

// SliceSource replays a fixed list of keys and can be rewound with Reset.
type SliceSource struct {
	keys []string
	pos  int
}

func NewSliceSource(keys ...string) *SliceSource {
	return &SliceSource{keys: keys}
}

func (s *SliceSource) Next() (string, bool) {
	if s.pos >= len(s.keys) {
		return "", false
	}
	key := s.keys[s.pos]
	s.pos++
	return key, true
}

func (s *SliceSource) Reset() {
	s.pos = 0
}

// Run looks up every key src yields, printing responses to out as they arrive.
// A failed lookup is logged and the next key is read; Run returns when src is
// exhausted or ctx is cancelled.
func (c *Client) Run(ctx context.Context, src KeySource, out io.Writer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		key, ok := src.Next()
		if !ok {
			return nil
		}

		fmt.Fprintln(out, "Querying servents for key...")
		_, err := c.Lookup(ctx, key, func(r Result) {
			fmt.Fprintln(out, r)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			logger.Errorf("lookup of %q failed: %v", key, err)
		}
	}
}
