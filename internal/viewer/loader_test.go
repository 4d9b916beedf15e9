package viewer

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// collect reads a task's events until the channel closes.
func collect(t *testing.T, task *LoadTask) []LoadEvent {
	t.Helper()
	var evs []LoadEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatalf("load of %s did not finish", task.Source)
		}
	}
}

// terminal splits events into progress and the final event.
func terminal(t *testing.T, evs []LoadEvent) ([]Progress, LoadEvent) {
	t.Helper()
	if len(evs) == 0 {
		t.Fatal("no load events")
	}
	var progress []Progress
	for _, ev := range evs[:len(evs)-1] {
		p, ok := ev.(Progress)
		if !ok {
			t.Fatalf("%T before the final event", ev)
		}
		progress = append(progress, p)
	}
	return progress, evs[len(evs)-1]
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name   string
		p      Progress
		want   int
		wantOK bool
	}{
		{"start", Progress{Loaded: 0, Total: 200}, 0, true},
		{"half", Progress{Loaded: 100, Total: 200}, 50, true},
		{"rounds", Progress{Loaded: 1, Total: 3}, 33, true},
		{"rounds up", Progress{Loaded: 2, Total: 3}, 67, true},
		{"done", Progress{Loaded: 200, Total: 200}, 100, true},
		{"overrun clamps", Progress{Loaded: 300, Total: 200}, 100, true},
		{"unknown total", Progress{Loaded: 50, Total: -1}, 0, false},
		{"zero total", Progress{Loaded: 0, Total: 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.Percent()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Percent() = %d, %t; want %d, %t", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoaderLocalFile(t *testing.T) {
	info, err := os.Stat("testdata/box.gltf")
	if err != nil {
		t.Fatal(err)
	}

	task := (&Loader{}).Load(context.Background(), "testdata/box.gltf")
	progress, last := terminal(t, collect(t, task))

	loaded, ok := last.(Loaded)
	if !ok {
		t.Fatalf("final event = %#v, want Loaded", last)
	}
	if loaded.Scene.TriangleCount() != 12 {
		t.Errorf("triangles = %d, want 12", loaded.Scene.TriangleCount())
	}
	if loaded.Scene.Source != "testdata/box.gltf" {
		t.Errorf("source = %q", loaded.Scene.Source)
	}
	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	for _, p := range progress {
		if p.Total != info.Size() {
			t.Errorf("progress total = %d, want %d", p.Total, info.Size())
		}
	}
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Error("Done not closed after the final event")
	}
}

func TestLoaderFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		is     error
	}{
		{"missing file", "testdata/missing.gltf", fs.ErrNotExist},
		{"malformed json", "testdata/broken.gltf", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := (&Loader{}).Load(context.Background(), tt.source)
			_, last := terminal(t, collect(t, task))

			failed, ok := last.(Failed)
			if !ok {
				t.Fatalf("final event = %#v, want Failed", last)
			}
			var le *LoadError
			if !errors.As(failed.Err, &le) {
				t.Fatalf("error %T is not a *LoadError", failed.Err)
			}
			if le.Source != tt.source {
				t.Errorf("LoadError.Source = %q, want %q", le.Source, tt.source)
			}
			if tt.is != nil && !errors.Is(failed.Err, tt.is) {
				t.Errorf("error %v does not wrap %v", failed.Err, tt.is)
			}
			if !strings.HasPrefix(le.Error(), "load "+tt.source+": ") {
				t.Errorf("Error() = %q", le.Error())
			}
		})
	}
}

func TestLoaderHTTP(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	defer srv.Close()

	info, err := os.Stat("testdata/box.gltf")
	if err != nil {
		t.Fatal(err)
	}

	task := (&Loader{Client: srv.Client()}).Load(context.Background(), srv.URL+"/box.gltf")
	progress, last := terminal(t, collect(t, task))

	loaded, ok := last.(Loaded)
	if !ok {
		t.Fatalf("final event = %#v, want Loaded", last)
	}
	// The vertex buffer is a relative URI fetched from the same server.
	if got := loaded.Scene.VertexCount(); got != 8 {
		t.Errorf("vertices = %d, want 8", got)
	}
	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	if p := progress[0]; p.Total != info.Size() {
		t.Errorf("progress total = %d, want Content-Length %d", p.Total, info.Size())
	}
}

func TestLoaderHTTPUnknownLength(t *testing.T) {
	data, err := os.ReadFile("testdata/box.gltf")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/box.bin" {
			http.ServeFile(w, r, "testdata/box.bin")
			return
		}
		// Flushing before the body is complete forces chunked encoding.
		w.Write(data[:10])
		w.(http.Flusher).Flush()
		w.Write(data[10:])
	}))
	defer srv.Close()

	task := (&Loader{Client: srv.Client()}).Load(context.Background(), srv.URL+"/box.gltf")
	progress, last := terminal(t, collect(t, task))
	if _, ok := last.(Loaded); !ok {
		t.Fatalf("final event = %#v, want Loaded", last)
	}
	for _, p := range progress {
		if _, ok := p.Percent(); ok {
			t.Errorf("progress %+v has a percentage without Content-Length", p)
		}
	}
}

func TestLoaderHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	task := (&Loader{Client: srv.Client()}).Load(context.Background(), srv.URL+"/box.gltf")
	_, last := terminal(t, collect(t, task))

	failed, ok := last.(Failed)
	if !ok {
		t.Fatalf("final event = %#v, want Failed", last)
	}
	if !strings.Contains(failed.Err.Error(), "404") {
		t.Errorf("error %q does not mention the status", failed.Err)
	}
}

func TestLoaderCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	task := (&Loader{Client: srv.Client()}).Load(context.Background(), srv.URL+"/slow.gltf")
	task.Cancel()
	task.Cancel()

	for _, ev := range collect(t, task) {
		if _, ok := ev.(Loaded); ok {
			t.Fatal("cancelled task delivered Loaded")
		}
	}
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled task never finished")
	}
}
