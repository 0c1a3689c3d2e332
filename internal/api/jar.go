package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// markerCookie is the readable, non-session-bearing cookie the platform sets
// alongside its httpOnly credentials. Its presence is the only thing the
// client may inspect; the credential cookies themselves stay opaque.
const markerCookie = "userInfo"

// persistedCookie is the on-disk shape of one cookie.
type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Jar is a cookie jar scoped to the platform origin. When given a path it
// mirrors the origin's cookies to disk so a restarted process keeps its
// server-set session, which is what lets a CLI bootstrap optimistically the
// way a reloaded browser tab does.
type Jar struct {
	base *url.URL
	path string

	mu    sync.Mutex
	inner *cookiejar.Jar
	saved map[string]persistedCookie
}

// NewJar builds a jar for the given origin, loading any previously persisted
// cookies. An empty path keeps the jar memory-only.
func NewJar(path string, base *url.URL) (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &Jar{
		base:  base,
		path:  path,
		inner: inner,
		saved: make(map[string]persistedCookie),
	}
	if path != "" {
		if err := j.load(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// SetCookies records response cookies and mirrors platform-origin changes to
// disk.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if u.Hostname() != j.base.Hostname() {
		return
	}

	now := time.Now()
	for _, ck := range cookies {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		if expired || ck.Value == "" {
			delete(j.saved, ck.Name)
			continue
		}
		j.saved[ck.Name] = persistedCookie{Name: ck.Name, Value: ck.Value, Expires: ck.Expires}
	}
	j.persist()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Reset drops every cookie, in memory and on disk.
func (j *Jar) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()

	inner, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	j.inner = inner
	j.saved = make(map[string]persistedCookie)
	if j.path != "" {
		_ = os.Remove(j.path)
	}
}

// LoggedInHint implements ports.SessionHint: the marker cookie's presence
// suggests, without proving, that a server session exists.
func (j *Jar) LoggedInHint() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, ck := range j.inner.Cookies(j.base) {
		if ck.Name == markerCookie {
			return true
		}
	}
	return false
}

func (j *Jar) load() error {
	raw, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}

	var entries []persistedCookie
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A corrupt cookie file is equivalent to no cookies at all.
		_ = os.Remove(j.path)
		return nil
	}

	now := time.Now()
	restored := make([]*http.Cookie, 0, len(entries))
	for _, e := range entries {
		if !e.Expires.IsZero() && e.Expires.Before(now) {
			continue
		}
		j.saved[e.Name] = e
		restored = append(restored, &http.Cookie{Name: e.Name, Value: e.Value, Expires: e.Expires})
	}
	j.inner.SetCookies(j.base, restored)
	return nil
}

// persist writes the saved cookies via a temp file rename. Callers hold j.mu.
func (j *Jar) persist() {
	if j.path == "" {
		return
	}
	entries := make([]persistedCookie, 0, len(j.saved))
	for _, e := range j.saved {
		entries = append(entries, e)
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, j.path)
}
