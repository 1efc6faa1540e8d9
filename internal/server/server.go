// Package server is the read-only operator view: an index of active story
// clusters and a per-cluster page showing the source timeline next to the
// AI summaries in every translated language.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/newsbabel/newsbabel/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const indexWindow = 7 * 24 * time.Hour

// Server is the HTTP server for browsing clusters.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// clusterView is one index row: a cluster plus its display title.
type clusterView struct {
	Cluster database.Cluster
	Title   string
	Langs   []string
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"datetime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04 MST")
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page clones the base so it gets its own content/title blocks.
	pageNames := []string{"index.html", "cluster.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/cluster/", s.handleCluster)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	clusters, err := s.db.GetRecentClusters(time.Now().UTC().Add(-indexWindow), 100)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]clusterView, 0, len(clusters))
	for _, c := range clusters {
		v := clusterView{Cluster: c, Title: c.Fingerprint}
		if summaries, err := s.db.GetCurrentSummaries(c.ID); err == nil {
			for _, sum := range summaries {
				v.Langs = append(v.Langs, sum.Lang)
			}
			if len(summaries) > 0 {
				v.Title = summaries[0].AITitle
			}
		}
		views = append(views, v)
	}

	s.render(w, "index.html", map[string]any{
		"Clusters": views,
	})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	clusterID := strings.TrimPrefix(r.URL.Path, "/cluster/")
	if clusterID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	cluster, err := s.db.GetCluster(clusterID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cluster == nil {
		http.NotFound(w, r)
		return
	}

	updates, _ := s.db.GetClusterUpdates(clusterID)
	summaries, _ := s.db.GetCurrentSummaries(clusterID)

	selected := pickSummary(summaries, r.URL.Query().Get("lang"))

	s.render(w, "cluster.html", map[string]any{
		"Cluster":   cluster,
		"Updates":   updates,
		"Summaries": summaries,
		"Selected":  selected,
	})
}

// pickSummary prefers the requested language and falls back to the first
// available one.
func pickSummary(summaries []database.ClusterAI, lang string) *database.ClusterAI {
	for i := range summaries {
		if summaries[i].Lang == lang {
			return &summaries[i]
		}
	}
	if len(summaries) > 0 {
		return &summaries[0]
	}
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
