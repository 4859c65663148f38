/*
Copyright © 2024 Rémi Ferrand

Contributor(s): Rémi Ferrand <riton.github_at_gmail.com>, 2024

This software is governed by the CeCILL license under French law and
abiding by the rules of distribution of free software.  You can  use,
modify and/ or redistribute the software under the terms of the CeCILL
license as circulated by CEA, CNRS and INRIA at the following URL
"http://www.cecill.info".

As a counterpart to the access to the source code and  rights to copy,
modify and redistribute granted by the license, users are provided only
with a limited warranty  and the software's author,  the holder of the
economic rights,  and the successive licensors  have only  limited
liability.

In this respect, the user's attention is drawn to the risks associated
with loading,  using,  modifying and/or developing or reproducing the
software by the user in light of its specific status of free software,
that may mean  that it is complicated to manipulate,  and  that  also
therefore means  that it is reserved for developers  and  experienced
professionals having in-depth computer knowledge. Users are therefore
encouraged to load and test the software's suitability as regards their
requirements in conditions enabling the security of their systems and/or
data to be ensured and,  more generally, to use and operate it in the
same conditions as regards security.

The fact that you are presently reading this means that you have had
knowledge of the CeCILL license and that you accept its terms.
*/
package cmd

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	t.Run("assigns an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get(requestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("propagates a valid id", func(t *testing.T) {
		existing := uuid.NewString()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, existing)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, existing, w.Header().Get(requestIDHeader))
		assert.Equal(t, existing, seen)
	})

	t.Run("replaces an invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "not-a-uuid")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		id := w.Header().Get(requestIDHeader)
		assert.NotEqual(t, "not-a-uuid", id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})
}

func TestRouter_Middleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	page, err := newPageHandler("production")
	require.NoError(t, err)
	r := newRouter(page, logger)

	t.Run("every response carries a request id", func(t *testing.T) {
		for _, path := range []string{"/", "/nonexistent"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.NotEmpty(t, w.Header().Get(requestIDHeader), path)
		}
	})

	t.Run("logs one line per request", func(t *testing.T) {
		logs.Reset()

		req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		line := logs.String()
		assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("\n")))
		assert.Contains(t, line, "msg=\"handled request\"")
		assert.Contains(t, line, "path=/nonexistent")
		assert.Contains(t, line, "http-status-code=404")
		assert.Contains(t, line, "request-id="+w.Header().Get(requestIDHeader))
	})

	t.Run("logs the real client address", func(t *testing.T) {
		logs.Reset()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, logs.String(), "remote-addr=203.0.113.7")
	})

	t.Run("logs the first forwarded address", func(t *testing.T) {
		logs.Reset()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Contains(t, logs.String(), "remote-addr=198.51.100.4")
	})

	t.Run("recovers from panics", func(t *testing.T) {
		boom := newRouter(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}), logger)

		w := httptest.NewRecorder()
		boom.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
