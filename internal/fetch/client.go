package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sha1n/invitewatch/internal/domain"
)

const (
	// DefaultUserAgent mimics a desktop browser.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

	// DefaultMinPageLength is the size below which a profile page is
	// assumed to be a login wall.
	DefaultMinPageLength = 2048

	// ProfileNoteID identifies the synthetic note built from a profile page
	// whose note list could not be parsed.
	ProfileNoteID = "profile"

	maxBodyBytes   = 8 << 20
	maxCommentPage = 20
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIURL    string
	Cookies   string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	// Rate is the maximum requests per second; zero or less disables pacing.
	Rate          float64
	MinPageLength int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client fetches notes and comments over HTTP.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if _, err := url.Parse(opts.BaseURL); err != nil || opts.BaseURL == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if _, err := url.Parse(opts.APIURL); err != nil || opts.APIURL == "" {
		return nil, fmt.Errorf("invalid API URL %q", opts.APIURL)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MinPageLength <= 0 {
		opts.MinPageLength = DefaultMinPageLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}

	return &Client{
		opts:    opts,
		http:    hc,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// FetchNotes returns up to max notes from the user's profile page.
func (c *Client) FetchNotes(ctx context.Context, userID string, max int) ([]domain.Note, error) {
	const unit = "notes"
	profileURL := c.opts.BaseURL + "/user/profile/" + url.PathEscape(userID)

	body, err := c.get(ctx, unit, profileURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	if len(body) < c.opts.MinPageLength {
		return nil, domain.NewAuthError(unit, fmt.Errorf("profile page too short (%d bytes)", len(body)))
	}

	page := string(body)
	notes, err := ParseProfile(page)
	if err != nil {
		slog.Debug("Profile state unavailable", "error", err)
	}
	if len(notes) == 0 && hasLoginMarker(page) {
		return nil, domain.NewAuthError(unit, errors.New("profile page shows a login prompt"))
	}
	if len(notes) == 0 {
		notes = ParseNoteLinks(page)
	}
	if len(notes) == 0 {
		text := VisibleText(page)
		if text == "" {
			return nil, domain.NewAuthError(unit, errors.New("profile page has no readable content"))
		}
		slog.Debug("No notes parsed, falling back to page text", "chars", len(text))
		notes = []domain.Note{{ID: ProfileNoteID, Text: text}}
	}

	if max > 0 && len(notes) > max {
		notes = notes[:max]
	}
	return notes, nil
}

// FetchNoteDetail opens the note's own page and fills in its full text.
// The profile only carries titles, so this is where note bodies come from.
// On failure the note is returned unchanged together with the error.
func (c *Client) FetchNoteDetail(ctx context.Context, note domain.Note) (domain.Note, error) {
	if note.ID == ProfileNoteID {
		return note, nil
	}
	unit := "detail:" + note.ID

	target := c.opts.BaseURL + "/explore/" + url.PathEscape(note.ID)
	if note.Token != "" {
		q := url.Values{}
		q.Set("xsec_token", note.Token)
		q.Set("xsec_source", "pc_user")
		target += "?" + q.Encode()
	}

	body, err := c.get(ctx, unit, target, map[string]string{
		"Accept":  "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Referer": c.opts.BaseURL + "/",
	})
	if err != nil {
		return note, err
	}

	page := string(body)
	title, desc := ParseNoteDetail(page, note.ID)
	if title == "" && desc == "" {
		if hasLoginMarker(page) {
			return note, domain.NewAuthError(unit, errors.New("note page shows a login prompt"))
		}
		return note, domain.NewNetworkError(unit, errors.New("note page has no readable content"))
	}

	if note.Title == "" {
		note.Title = title
	}
	if desc != "" {
		note.Text = desc
	}
	return note, nil
}

// FetchComments returns up to max comments of note, flattening replies.
// The synthetic profile note has no comments.
func (c *Client) FetchComments(ctx context.Context, note domain.Note, max int) ([]domain.Comment, error) {
	if note.ID == ProfileNoteID {
		return nil, nil
	}
	unit := "comments:" + note.ID

	var out []domain.Comment
	cursor := ""
	for page := 0; page < maxCommentPage; page++ {
		q := url.Values{}
		q.Set("note_id", note.ID)
		q.Set("cursor", cursor)
		q.Set("top_comment_id", "")
		q.Set("image_formats", "jpg,webp,avif")
		if note.Token != "" {
			q.Set("xsec_token", note.Token)
		}

		body, err := c.get(ctx, unit, c.opts.APIURL+"/api/sns/web/v2/comment/page?"+q.Encode(), map[string]string{
			"Accept":  "application/json, text/plain, */*",
			"Origin":  c.opts.BaseURL,
			"Referer": c.opts.BaseURL + "/",
		})
		if err != nil {
			return nil, err
		}

		resp, err := parseCommentPage(body)
		if err != nil {
			return nil, domain.NewNetworkError(unit, err)
		}
		if !resp.Success {
			if isLoginCode(resp.Code) {
				return nil, domain.NewAuthError(unit, fmt.Errorf("comment API code %d: %s", resp.Code, resp.Msg))
			}
			return nil, domain.NewNetworkError(unit, fmt.Errorf("comment API code %d: %s", resp.Code, resp.Msg))
		}

		out = append(out, resp.Data.flatten()...)
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if !resp.Data.HasMore || resp.Data.Cursor == "" || resp.Data.Cursor == cursor {
			break
		}
		cursor = resp.Data.Cursor
	}
	return out, nil
}

// get performs a paced GET and classifies failures.
func (c *Client) get(ctx context.Context, unit, target string, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewNetworkError(unit, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.NewNetworkError(unit, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if c.opts.Cookies != "" {
		req.Header.Set("Cookie", c.opts.Cookies)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError(unit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == 461:
		return nil, domain.NewAuthError(unit, fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewNetworkError(unit, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNetworkError(unit, err)
	}
	slog.Debug("Fetched", "unit", unit, "bytes", len(body))
	return body, nil
}
