package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// PlatformUserID is the profile served by PlatformService.
const PlatformUserID = "58953dcb3460945280efcf7b"

// PropPlatformURL is the property holding the fake platform base URL.
const PropPlatformURL = "platform_url"

// FakeNote is a note listed on the fake profile page. The profile only
// carries the title; Desc is served on the note's own page.
type FakeNote struct {
	ID       string
	Title    string
	Desc     string
	Comments []string
}

// PlatformService fakes the profile page, note pages and the comment API. Notes can be
// replaced between cycles; LoginWall switches every response to a login prompt.
type PlatformService struct {
	mu        sync.Mutex
	notes     []FakeNote
	loginWall bool
	requests  int

	srv *httptest.Server
}

// NewPlatformService creates a fake platform listing notes.
func NewPlatformService(notes ...FakeNote) *PlatformService {
	return &PlatformService{notes: notes}
}

func (p *PlatformService) GetName() string { return "platform" }

func (p *PlatformService) Start() (map[string]any, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/profile/"+PlatformUserID, p.profile)
	mux.HandleFunc("/explore/{id}", p.detail)
	mux.HandleFunc("/api/sns/web/v2/comment/page", p.comments)
	p.srv = httptest.NewServer(mux)
	return map[string]any{PropPlatformURL: p.srv.URL}, nil
}

func (p *PlatformService) Stop() error {
	if p.srv != nil {
		p.srv.Close()
	}
	return nil
}

// SetNotes replaces the listed notes.
func (p *PlatformService) SetNotes(notes ...FakeNote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = notes
}

// SetLoginWall toggles the login prompt.
func (p *PlatformService) SetLoginWall(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginWall = on
}

// Requests returns how many requests were served.
func (p *PlatformService) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *PlatformService) profile(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++

	if p.loginWall {
		_, _ = fmt.Fprint(w, `<html><body><div class="login-container">请登录</div></body></html>`)
		return
	}

	cards := make([]map[string]any, 0, len(p.notes))
	for _, n := range p.notes {
		cards = append(cards, map[string]any{
			"noteCard":  map[string]any{"noteId": n.ID, "displayTitle": n.Title},
			"xsecToken": "tok-" + n.ID,
		})
	}
	state, _ := json.Marshal(map[string]any{"user": map[string]any{"notes": [][]map[string]any{cards}}})

	_, _ = fmt.Fprintf(w, "<html><head><script>window.__INITIAL_STATE__=%s</script></head><body>%s</body></html>",
		state, strings.Repeat("<div>feed</div>", 200))
}

func (p *PlatformService) detail(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++

	if p.loginWall {
		_, _ = fmt.Fprint(w, `<html><body><div class="login-container">请登录</div></body></html>`)
		return
	}

	id := r.PathValue("id")
	for _, n := range p.notes {
		if n.ID != id {
			continue
		}
		note := map[string]any{"noteId": n.ID, "title": n.Title, "desc": n.Desc}
		state, _ := json.Marshal(map[string]any{
			"note": map[string]any{"currentNoteId": n.ID, "noteDetailMap": map[string]any{n.ID: map[string]any{"note": note}}},
		})
		_, _ = fmt.Fprintf(w, "<html><head><script>window.__INITIAL_STATE__=%s</script></head><body></body></html>", state)
		return
	}
	http.NotFound(w, r)
}

func (p *PlatformService) comments(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++

	if p.loginWall {
		_, _ = fmt.Fprint(w, `{"code":-101,"success":false,"msg":"无登录信息"}`)
		return
	}

	noteID := r.URL.Query().Get("note_id")
	var comments []map[string]any
	for _, n := range p.notes {
		if n.ID != noteID {
			continue
		}
		for i, c := range n.Comments {
			comments = append(comments, map[string]any{"id": fmt.Sprintf("%s-c%d", n.ID, i), "content": c})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    0,
		"success": true,
		"data":    map[string]any{"cursor": "", "has_more": false, "comments": comments},
	})
}
