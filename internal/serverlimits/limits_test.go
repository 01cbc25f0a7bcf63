package serverlimits

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEffective(t *testing.T) {
	cases := []struct {
		in, want int64
	}{
		{0, DefaultMaxBodyBytes},
		{-1, 0},
		{4096, 4096},
	}
	for _, c := range cases {
		if got := Effective(c.in); got != c.want {
			t.Errorf("Effective(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestIsBodyTooLarge(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 4)
		_, err := io.ReadAll(r.Body)
		if err != nil && IsBodyTooLarge(err) {
			WriteBodyTooLarge(w)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "http://example.invalid/ws", strReader("too many bytes"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if rec.Header().Get("Connection") != "close" {
		t.Fatalf("missing Connection: close header")
	}
}

func strReader(s string) io.Reader { return &stringReaderCloser{s: s} }

type stringReaderCloser struct {
	s   string
	pos int
}

func (r *stringReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
