// server serves the live view of a run: the index page with the belief views, a websocket
// that pushes their updates, and a small json endpoint with the running statistics.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"localizer/localizer"
	"localizer/server/cell_views"
	"localizer/server/fastview"
	"localizer/server/root_view"

	"github.com/gorilla/mux"
)

const shutdownGracePeriod = 5 * time.Second

// StatsSource is read by the /stats handler from the http goroutines.
type StatsSource interface {
	Snapshot() (iteration int, accuracy float64)
}

// Stats is the /stats response body.
type Stats struct {
	Iteration int     `json:"iteration"`
	Accuracy  float64 `json:"accuracy"`
}

// Server serves a single run to any number of pages. Each page gets the latest board when
// loaded and element updates thereafter.
type Server struct {
	addr     string
	rootView *root_view.RootView
	hub      *fastview.Hub[[]fastview.EleUpdate]
	stats    StatsSource
	router   *mux.Router

	mu        sync.RWMutex
	lastFrame localizer.Frame
}

// NewServer builds the views. Frames sent on frames drive every view; the caller closes
// frames or cancels ctx to stop them.
func NewServer(
	ctx context.Context,
	addr string,
	initial localizer.Frame,
	frames <-chan localizer.Frame,
	stats StatsSource,
) (*Server, error) {
	server := &Server{
		addr:      addr,
		hub:       fastview.NewHub[[]fastview.EleUpdate](),
		stats:     stats,
		lastFrame: initial,
	}

	rootView, err := root_view.NewRootView(ctx, initial.Rows, initial.Cols, server.track(ctx.Done(), frames))
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}
	server.rootView = rootView
	go server.hub.Run(ctx.Done(), rootView.Updates())

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	server.router = router

	return server, nil
}

// track records the latest frame for page loads and passes frames through to the views.
func (server *Server) track(
	done <-chan struct{},
	frames <-chan localizer.Frame,
) <-chan localizer.Frame {
	output := make(chan localizer.Frame)
	go func() {
		defer close(output)
		for {
			select {
			case <-done:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				server.mu.Lock()
				server.lastFrame = frame
				server.mu.Unlock()

				select {
				case output <- frame:
				case <-done:
					return
				}
			}
		}
	}()
	return output
}

// Handler returns the router, for tests and for embedding.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is cancelled.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("serving on %s", server.addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// serveWebsocket pushes view updates to one page until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := server.hub.Subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		log.Println(err)
		return
	}
	defer cli.Close()

	if err = cli.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	server.mu.RLock()
	frame := server.lastFrame
	server.mu.RUnlock()

	var page bytes.Buffer
	if err := renderTemplate(&page, server.rootView, cell_views.Convert(frame)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write(page.Bytes())
}

func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	iteration, accuracy := server.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Stats{Iteration: iteration, Accuracy: accuracy}); err != nil {
		log.Println("stats:", err)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}
