package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/learnsphere/platform-client/internal/api/metrics"
)

// retryMarker flags a request that already went through one refresh-and-retry
// cycle. A second 401 on a marked request propagates without another attempt.
const retryMarker = "X-Session-Retry"

var errRefreshFailed = errors.New("token refresh failed")

// noInterceptKey marks requests issued on behalf of the refresh itself; they
// must see their 401s raw instead of recursing into the interceptor.
type noInterceptKey struct{}

func withNoIntercept(ctx context.Context) context.Context {
	return context.WithValue(ctx, noInterceptKey{}, struct{}{})
}

// exempt paths must never trigger a refresh: a 401 from these is the answer,
// and refreshing on the refresh endpoint would loop forever.
var exemptPaths = map[string]struct{}{
	loginPath:   {},
	logoutPath:  {},
	refreshPath: {},
}

// refreshTransport retries a 401-rejected request once after refreshing the
// session. Concurrent 401s collapse onto a single in-flight refresh; every
// waiter retries (or fails) on that one shared outcome.
type refreshTransport struct {
	base http.RoundTripper
	jar  http.CookieJar
	log  zerolog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	session SessionRefresher
}

func (t *refreshTransport) attach(s SessionRefresher) {
	t.mu.Lock()
	t.session = s
	t.mu.Unlock()
}

func (t *refreshTransport) attached() SessionRefresher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	session := t.attached()
	if session == nil {
		return resp, nil
	}
	if _, ok := exemptPaths[req.URL.Path]; ok {
		return resp, nil
	}
	if req.Context().Value(noInterceptKey{}) != nil {
		return resp, nil
	}
	if req.Header.Get(retryMarker) != "" {
		t.log.Debug().Str("path", req.URL.Path).Msg("second 401 after refresh, giving up")
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body is already consumed and cannot be replayed.
		return resp, nil
	}

	metrics.UnauthorizedTotal.Inc()

	// The shared refresh must not die with whichever caller happened to
	// start it, so it runs outside the initiating request's cancellation.
	refreshCtx := withNoIntercept(context.WithoutCancel(req.Context()))
	_, refreshErr, _ := t.group.Do("refresh", func() (any, error) {
		if !session.RefreshToken(refreshCtx) {
			metrics.RefreshTotal.WithLabelValues("failure").Inc()
			session.Clear()
			return nil, errRefreshFailed
		}
		metrics.RefreshTotal.WithLabelValues("success").Inc()
		return nil, nil
	})
	if refreshErr != nil {
		// Propagate the original rejection to this caller, exactly as the
		// server produced it.
		return resp, nil
	}

	// Drop the rejected response and replay the request with the cookies
	// the refresh just rotated in.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()

	retry := req.Clone(req.Context())
	retry.Header.Set(retryMarker, "1")
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	if t.jar != nil {
		retry.Header.Del("Cookie")
		for _, ck := range t.jar.Cookies(retry.URL) {
			retry.AddCookie(ck)
		}
	}

	metrics.RequestRetriesTotal.Inc()
	t.log.Debug().Str("path", req.URL.Path).Msg("retrying request after refresh")
	return t.RoundTrip(retry)
}
