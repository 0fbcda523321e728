package fetch

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sha1n/invitewatch/internal/domain"
)

const initialStateMarker = "window.__INITIAL_STATE__"

var (
	// ErrNoState is returned when a page carries no initial state script.
	ErrNoState = errors.New("initial state not found")

	undefinedValue = regexp.MustCompile(`([:\[,]\s*)undefined(\s*[,\]}])`)
	noteLink       = regexp.MustCompile(`/(?:explore|discovery/item)/([0-9a-f]{16,32})`)

	loginMarkers = []string{
		"请登录", "登录后查看", "扫码登录", "login-container", "/website-login/", "passport.xiaohongshu.com",
	}
)

// ParseProfile extracts notes from the initial state JSON embedded in a
// profile page. Notes keep the order in which they appear in the state.
func ParseProfile(page string) ([]domain.Note, error) {
	raw, err := initialState(page)
	if err != nil {
		return nil, err
	}

	var state any
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, err
	}

	var notes []domain.Note
	seen := make(map[string]struct{})
	walkNotes(state, "", &notes, seen)
	return notes, nil
}

// initialState returns the JavaScript object literal assigned to
// window.__INITIAL_STATE__, normalized to JSON.
func initialState(page string) (string, error) {
	i := strings.Index(page, initialStateMarker)
	if i < 0 {
		return "", ErrNoState
	}
	rest := page[i+len(initialStateMarker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", ErrNoState
	}
	rest = rest[eq+1:]
	if end := strings.Index(rest, "</script>"); end >= 0 {
		rest = rest[:end]
	}
	raw := strings.TrimSpace(rest)
	raw = strings.TrimSuffix(raw, ";")

	// Adjacent values share a separator, so one pass can miss every other one.
	for {
		next := undefinedValue.ReplaceAllString(raw, "${1}null${2}")
		if next == raw {
			break
		}
		raw = next
	}
	return raw, nil
}

// walkNotes collects objects that look like notes. Map keys are visited in
// sorted order so the result is deterministic; xsecToken is inherited from
// the nearest enclosing object that carries one.
func walkNotes(v any, token string, notes *[]domain.Note, seen map[string]struct{}) {
	switch node := v.(type) {
	case []any:
		for _, child := range node {
			walkNotes(child, token, notes, seen)
		}
	case map[string]any:
		if t := str(node, "xsecToken"); t != "" {
			token = t
		}
		if note, ok := asNote(node, token); ok {
			if _, dup := seen[note.ID]; !dup {
				seen[note.ID] = struct{}{}
				*notes = append(*notes, note)
			}
			return
		}

		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			walkNotes(node[k], token, notes, seen)
		}
	}
}

func asNote(m map[string]any, token string) (domain.Note, bool) {
	title := str(m, "displayTitle")
	if title == "" {
		title = str(m, "title")
	}
	desc := str(m, "desc")

	id := str(m, "noteId")
	if id == "" && (title != "" || desc != "") {
		id = str(m, "id")
	}
	if id == "" {
		return domain.Note{}, false
	}
	return domain.Note{ID: id, Title: title, Text: desc, Token: token}, true
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// ParseNoteLinks finds note anchors in a rendered page. Only the link title
// is known; the body is filled in by FetchNoteDetail.
func ParseNoteLinks(page string) []domain.Note {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var notes []domain.Note
	seen := make(map[string]struct{})
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			continue
		}
		href := attr(n, "href")
		m := noteLink.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}

		title := attr(n, "title")
		if title == "" {
			title = strings.TrimSpace(textOf(n))
		}
		token := ""
		if u, err := url.Parse(href); err == nil {
			token = u.Query().Get("xsec_token")
		}
		notes = append(notes, domain.Note{ID: m[1], Title: title, Token: token})
	}
	return notes
}

// ParseNoteDetail returns the title and body of note id from its detail
// page. The body comes from the initial state when present, otherwise from
// the rendered description block.
func ParseNoteDetail(page, id string) (title, desc string) {
	if raw, err := initialState(page); err == nil {
		var state any
		if err := json.Unmarshal([]byte(raw), &state); err == nil {
			if m := findNote(state, id); m != nil {
				title = str(m, "title")
				if title == "" {
					title = str(m, "displayTitle")
				}
				desc = str(m, "desc")
			}
		}
	}
	if desc == "" {
		desc = descriptionText(page)
	}
	return title, desc
}

// findNote returns the first object describing note id that has a title or
// a description.
func findNote(v any, id string) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, child := range node {
			if m := findNote(child, id); m != nil {
				return m
			}
		}
	case map[string]any:
		if str(node, "noteId") == id || str(node, "id") == id {
			_, hasTitle := node["title"]
			_, hasDesc := node["desc"]
			if hasTitle || hasDesc {
				return node
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if m := findNote(node[k], id); m != nil {
				return m
			}
		}
	}
	return nil
}

// descriptionText returns the visible text of the first description block
// of a rendered note page.
func descriptionText(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		if attr(n, "id") == "detail-desc" || hasClass(n, "desc", "note-content") {
			if text := visibleText(n); text != "" {
				return text
			}
		}
	}
	return ""
}

func hasClass(n *html.Node, names ...string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if slices.Contains(names, c) {
			return true
		}
	}
	return false
}

// VisibleText returns the text a reader would see, one block per line,
// without script and style content.
func VisibleText(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return visibleText(doc)
}

func visibleText(root *html.Node) string {
	var lines []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return strings.Join(lines, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return sb.String()
}

func hasLoginMarker(page string) bool {
	for _, m := range loginMarkers {
		if strings.Contains(page, m) {
			return true
		}
	}
	return false
}

// commentPage is the comment API envelope.
type commentPage struct {
	Code    int         `json:"code"`
	Success bool        `json:"success"`
	Msg     string      `json:"msg"`
	Data    commentData `json:"data"`
}

type commentData struct {
	Comments []apiComment `json:"comments"`
	Cursor   string       `json:"cursor"`
	HasMore  bool         `json:"has_more"`
}

type apiComment struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	SubComments []apiComment `json:"sub_comments"`
}

func parseCommentPage(body []byte) (*commentPage, error) {
	var p commentPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// flatten lists each comment followed by its replies. Empty comments are
// dropped.
func (d commentData) flatten() []domain.Comment {
	var out []domain.Comment
	var add func([]apiComment)
	add = func(cs []apiComment) {
		for _, c := range cs {
			if text := strings.TrimSpace(c.Content); text != "" {
				out = append(out, domain.Comment{ID: c.ID, Text: text})
			}
			add(c.SubComments)
		}
	}
	add(d.Comments)
	return out
}

// isLoginCode reports API codes that mean the session is not logged in.
func isLoginCode(code int) bool {
	switch code {
	case -100, -101, -104:
		return true
	}
	return false
}
