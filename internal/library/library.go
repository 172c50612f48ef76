// Package library lists and watches the local directory of downloaded
// karaoke projects.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"
)

// projectExt marks project payload files in the library directory.
const projectExt = ".kara.json"

// Project is one library entry.
type Project struct {
	Path    string
	Title   string
	Size    int64
	ModTime time.Time
}

// HumanAge returns the entry's age, e.g. "2 days ago".
func (p Project) HumanAge() string { return humanize.Time(p.ModTime) }

// HumanSize returns the payload size, e.g. "1.2 MB".
func (p Project) HumanSize() string { return humanize.Bytes(uint64(p.Size)) }

// Library reads projects from a directory.
type Library struct {
	dir string
}

// New creates a library over dir.
func New(dir string) *Library { return &Library{dir: dir} }

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }

// List returns all projects, newest first. A missing directory yields an
// empty list, not an error.
func (l *Library) List() ([]Project, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading library: %w", err)
	}

	var projects []Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), projectExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		projects = append(projects, Project{
			Path:    path,
			Title:   readTitle(path, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ModTime.After(projects[j].ModTime)
	})
	return projects, nil
}

// readTitle pulls just the title field from a payload file, falling back
// to the file name.
func readTitle(path, name string) string {
	fallback := strings.TrimSuffix(name, projectExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Title == "" {
		return fallback
	}
	return head.Title
}

// Filter fuzzy-matches projects by title, best first. A blank query
// returns the input unchanged.
func Filter(projects []Project, query string) []Project {
	if strings.TrimSpace(query) == "" {
		return projects
	}
	titles := make([]string, len(projects))
	for i, p := range projects {
		titles[i] = p.Title
	}
	ranked := fuzzy.Find(query, titles)
	out := make([]Project, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, projects[r.Index])
	}
	return out
}

// Watch reports library directory changes on the returned channel until
// stop is called. Events are collapsed to a bare signal; callers re-List.
func (l *Library) Watch() (events <-chan struct{}, stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("watching library: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("watching library: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(ev.Name, projectExt) {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch, func() { w.Close() }, nil
}
