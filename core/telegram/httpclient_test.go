package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportReplaysBody(t *testing.T) {
	var bodies []string
	rt := &retryTransport{maxRetries: 2, base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b := new(strings.Builder)
		if r.Body != nil {
			buf := make([]byte, 64)
			n, _ := r.Body.Read(buf)
			b.Write(buf[:n])
		}
		bodies = append(bodies, b.String())
		if len(bodies) < 3 {
			return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("chat_id=1"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	_ = resp.Body.Close()
	if len(bodies) != 3 {
		t.Fatalf("attempts = %d", len(bodies))
	}
	for i, b := range bodies {
		if b != "chat_id=1" {
			t.Fatalf("attempt %d body = %q", i+1, b)
		}
	}
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad certificate")
	rt := &retryTransport{maxRetries: 3, base: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, perm
	})}
	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, perm) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}
