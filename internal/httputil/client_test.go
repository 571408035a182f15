package httputil

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestDoJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `{"name":"out","value":2.5}`)
	var out payload
	hdr := http.Header{"X-Api-Key": []string{"k"}}
	err := DoJSON(context.Background(), mock, http.MethodPost, "http://example.test/x", hdr, payload{Name: "in", Value: 1}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out != (payload{Name: "out", Value: 2.5}) {
		t.Errorf("out = %+v", out)
	}
	if mock.RequestCount() != 1 {
		t.Fatalf("requests = %d, want 1", mock.RequestCount())
	}
	req := mock.Requests[0]
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	if req.Header.Get("X-Api-Key") != "k" {
		t.Errorf("custom header not forwarded")
	}
	if mock.Bodies[0] != `{"name":"in","value":1}` {
		t.Errorf("body = %s", mock.Bodies[0])
	}
}

func TestDoJSON_StatusError(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient().AddResponse(http.StatusServiceUnavailable, "overloaded\n")
	err := DoJSON(context.Background(), mock, http.MethodGet, "http://example.test/x", nil, nil, nil)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Body != "overloaded" {
		t.Errorf("status error = %+v", se)
	}
}

func TestDoJSON_TransportAndDecodeErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(boom).AddResponse(http.StatusOK, "not json")

	if err := DoJSON(context.Background(), mock, http.MethodGet, "http://example.test/", nil, nil, &payload{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if err := DoJSON(context.Background(), mock, http.MethodGet, "http://example.test/", nil, nil, &payload{}); err == nil {
		t.Error("expected decode error")
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("custom")
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := mock.Do(req); err == nil || err.Error() != "custom" {
		t.Errorf("err = %v, want custom", err)
	}
}
