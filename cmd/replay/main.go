package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/replay"
)

func main() {
	var (
		in       = flag.String("in", "-", "JSON-lines file of score vectors, - for stdin")
		out      = flag.String("out", "-", "CSV output file, - for stdout")
		labels   = flag.String("labels", "", "Comma-separated labels in score order")
		modelURL = flag.String("model", "", "Model base URL to read labels from, used when -labels is empty")
		layout   = flag.String("layout", "3:04:05 PM", "Time layout for ticks without a timestamp")
		timeout  = flag.Duration("timeout", 30*time.Second, "Model metadata fetch timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	labelSet, err := resolveLabels(ctx, *labels, *modelURL, *timeout)
	if err != nil {
		fatal("failed to resolve labels", err)
	}

	r, err := openInput(*in)
	if err != nil {
		fatal("failed to open input", err)
	}
	defer r.Close()

	res, err := replay.Run(ctx, r, labelSet, replay.Options{TimestampLayout: *layout})
	if err != nil {
		fatal("replay failed", err)
	}

	w, err := openOutput(*out)
	if err != nil {
		fatal("failed to open output", err)
	}
	if _, err := io.WriteString(w, res.Log.CSV()+"\n"); err != nil {
		fatal("failed to write csv", err)
	}
	if err := w.Close(); err != nil {
		fatal("failed to close output", err)
	}

	slog.Info("replay finished", "ticks", res.Ticks, "skipped", res.Skipped)
}

func resolveLabels(ctx context.Context, labels, modelURL string, timeout time.Duration) ([]string, error) {
	if labels != "" {
		var out []string
		for _, l := range strings.Split(labels, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
		return out, nil
	}
	if modelURL == "" {
		return nil, fmt.Errorf("one of -labels or -model is required")
	}
	info, err := model.NewLoader(timeout).Load(ctx, modelURL)
	if err != nil {
		return nil, err
	}
	return info.Labels, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
