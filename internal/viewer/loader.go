package viewer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/taigrr/podium/pkg/models"
)

// LoadEvent is delivered on a LoadTask's channel: Progress zero or more
// times, then exactly one Loaded or Failed.
type LoadEvent interface {
	loadEvent()
}

// Progress reports bytes read so far. Total is negative when the size is
// not known up front.
type Progress struct {
	Loaded int64
	Total  int64
}

// Loaded carries the decoded scene.
type Loaded struct {
	Scene *models.Scene
}

// Failed carries the reason a load stopped. Err is a *LoadError.
type Failed struct {
	Err error
}

func (Progress) loadEvent() {}
func (Loaded) loadEvent()   {}
func (Failed) loadEvent()   {}

// Percent returns the rounded completion in [0, 100]. ok is false when the
// total is unknown.
func (p Progress) Percent() (pct int, ok bool) {
	if p.Total <= 0 {
		return 0, false
	}
	v := float64(p.Loaded) / float64(p.Total) * 100
	return int(min(100, max(0, v)) + 0.5), true
}

// LoadError is the only failure a load reports. It wraps fetch, HTTP status,
// decode and scene-build errors alike.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// eventBuffer bounds queued events per task. Progress beyond it is dropped.
const eventBuffer = 16

// Loader fetches and decodes models in the background.
type Loader struct {
	Client *http.Client
	Log    *log.Logger
}

// LoadTask is one running load.
type LoadTask struct {
	Source string

	events chan LoadEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the task's event channel. It is closed after the terminal
// event, or without one if the task was cancelled first.
func (t *LoadTask) Events() <-chan LoadEvent {
	return t.events
}

// Cancel aborts the fetch. It is safe to call more than once.
func (t *LoadTask) Cancel() {
	t.cancel()
}

// Done is closed when the loader goroutine exits.
func (t *LoadTask) Done() <-chan struct{} {
	return t.done
}

// Load starts fetching source, a local path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) *LoadTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &LoadTask{
		Source: source,
		events: make(chan LoadEvent, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer close(t.events)
		defer cancel()

		start := time.Now()
		scene, err := l.fetch(ctx, source, t.progress)

		var ev LoadEvent
		if err != nil {
			ev = Failed{Err: &LoadError{Source: source, Err: err}}
		} else {
			ev = Loaded{Scene: scene}
			l.logger().Debug("decoded model", "source", source, "elapsed", time.Since(start))
		}
		select {
		case t.events <- ev:
		case <-ctx.Done():
		}
	}()
	return t
}

func (l *Loader) logger() *log.Logger {
	if l.Log == nil {
		return log.Default()
	}
	return l.Log
}

// progress queues p unless the buffer is full.
func (t *LoadTask) progress(p Progress) {
	select {
	case t.events <- p:
	default:
	}
}

func (l *Loader) fetch(ctx context.Context, source string, report func(Progress)) (*models.Scene, error) {
	if isURL(source) {
		return l.fetchURL(ctx, source, report)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	total := int64(-1)
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	r := newProgressReader(ctx, f, total, report)
	return models.DecodeScene(r, source, os.DirFS(filepath.Dir(source)))
}

func (l *Loader) fetchURL(ctx context.Context, source string, report func(Progress)) (*models.Scene, error) {
	base, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	body, total, err := l.get(ctx, base)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r := newProgressReader(ctx, body, total, report)
	fsys := &urlFS{ctx: ctx, loader: l, base: base}
	return models.DecodeScene(r, source, fsys)
}

// get issues a GET and returns the body with its Content-Length, -1 if absent.
func (l *Loader) get(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// progressReader reports cumulative bytes after every read and stops once
// ctx is cancelled.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	total  int64
	read   int64
	report func(Progress)
}

func newProgressReader(ctx context.Context, r io.Reader, total int64, report func(Progress)) *progressReader {
	return &progressReader{ctx: ctx, r: r, total: total, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(Progress{Loaded: p.read, Total: p.total})
	}
	return n, err
}

// urlFS resolves a model's relative buffer and image URIs against its URL.
type urlFS struct {
	ctx    context.Context
	loader *Loader
	base   *url.URL
}

func (u *urlFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	ref, err := url.Parse(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	body, size, err := u.loader.get(u.ctx, u.base.ResolveReference(ref))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &urlFile{ReadCloser: body, name: path.Base(name), size: size}, nil
}

type urlFile struct {
	io.ReadCloser
	name string
	size int64
}

func (f *urlFile) Stat() (fs.FileInfo, error) {
	return urlFileInfo{f}, nil
}

type urlFileInfo struct{ f *urlFile }

func (i urlFileInfo) Name() string       { return i.f.name }
func (i urlFileInfo) Size() int64        { return max(i.f.size, 0) }
func (i urlFileInfo) Mode() fs.FileMode  { return 0o444 }
func (i urlFileInfo) ModTime() time.Time { return time.Time{} }
func (i urlFileInfo) IsDir() bool        { return false }
func (i urlFileInfo) Sys() any           { return nil }
