// Package replay decodes recorded score vectors offline into a detection log.
//
// Input is JSON lines, one tick per line:
//
//	{"scores":[0.1,0.7,0.2],"timestamp":"9:30:00 AM"}
//
// The timestamp is optional; missing ones are stamped by the clock. Lines
// that fail to parse or decode are counted and skipped.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kdimtricp/listenlog/internal/decoder"
	"github.com/kdimtricp/listenlog/internal/detection"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1 << 20

type Frame struct {
	Scores    []float64 `json:"scores"`
	Timestamp string    `json:"timestamp,omitempty"`

	line int
}

type Options struct {
	TimestampLayout string
	Now             func() time.Time
}

type Result struct {
	Log     *detection.Log
	Ticks   int
	Skipped int
}

// Run reads frames from r and decodes them against labels, in input order.
func Run(ctx context.Context, r io.Reader, labels []string, opts Options) (*Result, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("replay needs at least one label")
	}
	if opts.TimestampLayout == "" {
		opts.TimestampLayout = "3:04:05 PM"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	res := &Result{Log: detection.NewLog()}
	frames := make(chan Frame, 64)
	var unparsable, undecodable int

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}

			var f Frame
			if err := json.Unmarshal([]byte(text), &f); err != nil {
				slog.Warn("skipping unparsable line", "line", line, "err", err)
				unparsable++
				continue
			}
			f.line = line

			select {
			case frames <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return sc.Err()
	})

	g.Go(func() error {
		for f := range frames {
			d, err := decoder.Decide(f.Scores, labels)
			if err != nil {
				slog.Warn("skipping tick", "line", f.line, "err", err)
				undecodable++
				continue
			}

			ts := f.Timestamp
			if ts == "" {
				ts = opts.Now().Format(opts.TimestampLayout)
			}
			res.Log.Append(ts, d.Label, d.Confidence)
			res.Ticks++
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Skipped = unparsable + undecodable
	return res, nil
}
