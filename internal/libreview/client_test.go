package libreview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testToken     = "tok-123"
	testAccountID = "acct-456"
)

// fakeVendor is an httptest-backed stand-in for the LibreView API.
type fakeVendor struct {
	t          *testing.T
	loginCalls atomic.Int32
	termsCalls atomic.Int32

	// authPayload lets tests serve a malformed login response.
	authPayload string
}

func newFakeVendor(t *testing.T) (*fakeVendor, *httptest.Server) {
	v := &fakeVendor{t: t}
	mux := http.NewServeMux()

	mux.HandleFunc("/llu/auth/login", func(w http.ResponseWriter, r *http.Request) {
		v.loginCalls.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "llu.ios", r.Header.Get("product"))
		assert.NotEmpty(t, r.Header.Get("version"))
		assert.Empty(t, r.Header.Get("Authorization"), "login must be anonymous")
		assert.Empty(t, r.Header.Get("account-id"), "login must be anonymous")

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.NotEmpty(t, creds["email"])
		assert.NotEmpty(t, creds["password"])

		payload := v.authPayload
		if payload == "" {
			payload = `{"data":{"authTicket":{"token":"` + testToken + `"},"user":{"id":"` + testAccountID + `"}}}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	})

	mux.HandleFunc("/llu/connections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, hashAccountID(testAccountID), r.Header.Get("account-id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"patientId":"p1","sensor":{"sn":"S123"}},{"patientId":"p2","sensor":{"sn":"S456"}}]}`))
	})

	mux.HandleFunc("/auth/continue/tou", func(w http.ResponseWriter, r *http.Request) {
		v.termsCalls.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer terms-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("account-id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":0}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return v, srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "user@example.com", "secret", zap.NewNop())
}

func TestLazyAuthenticationSingleLogin(t *testing.T) {
	vendor, srv := newFakeVendor(t)
	client := newTestClient(srv)

	// First authenticated operation triggers exactly one login.
	_, err := client.Connections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), vendor.loginCalls.Load())

	// A second operation reuses the session without logging in again.
	_, err = client.Connections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), vendor.loginCalls.Load())
}

func TestConcurrentFirstCallsShareOneLogin(t *testing.T) {
	vendor, srv := newFakeVendor(t)
	client := newTestClient(srv)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Connections(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), vendor.loginCalls.Load())
}

func TestAuthenticateReturnsTokenAndAccountID(t *testing.T) {
	_, srv := newFakeVendor(t)
	client := newTestClient(srv)

	token, accountID, err := client.Authenticate(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
	assert.Equal(t, testAccountID, accountID)
}

func TestMalformedAuthResponseLeavesSessionClean(t *testing.T) {
	vendor, srv := newFakeVendor(t)
	vendor.authPayload = `{"data":{"user":{"id":"` + testAccountID + `"}}}`
	client := newTestClient(srv)

	_, err := client.Connections(context.Background())
	require.ErrorIs(t, err, ErrMalformedAuthResponse)

	// The session must stay unauthenticated, so the next call logs in again.
	_, err = client.Connections(context.Background())
	require.ErrorIs(t, err, ErrMalformedAuthResponse)
	assert.Equal(t, int32(2), vendor.loginCalls.Load())

	client.session.mu.Lock()
	defer client.session.mu.Unlock()
	assert.Empty(t, client.session.token)
	assert.Empty(t, client.session.accountID)
}

func TestMissingCredentials(t *testing.T) {
	vendor, srv := newFakeVendor(t)
	client := NewClient(srv.URL, "", "", zap.NewNop())

	_, err := client.Connections(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, int32(0), vendor.loginCalls.Load(), "no network call without credentials")
}

func TestLatestReadingSelectsFirstEntry(t *testing.T) {
	_, srv := newFakeVendor(t)
	client := newTestClient(srv)

	raw, err := client.LatestReading(context.Background())
	require.NoError(t, err)

	var entry struct {
		PatientID string `json:"patientId"`
	}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "p1", entry.PatientID)
}

func TestLatestReadingForFiltersByPatient(t *testing.T) {
	_, srv := newFakeVendor(t)
	client := newTestClient(srv)

	raw, err := client.LatestReadingFor(context.Background(), "p2")
	require.NoError(t, err)

	var entry struct {
		PatientID string `json:"patientId"`
	}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "p2", entry.PatientID)

	_, err = client.LatestReadingFor(context.Background(), "p3")
	require.ErrorIs(t, err, ErrNoConnections)
}

func TestEmptyConnectionsList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/llu/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"authTicket":{"token":"t"},"user":{"id":"a"}}}`))
	})
	mux.HandleFunc("/llu/connections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.LatestReading(context.Background())
	require.ErrorIs(t, err, ErrNoConnections)
}

func TestAcceptTermsUsesProvidedToken(t *testing.T) {
	vendor, srv := newFakeVendor(t)
	client := newTestClient(srv)

	_, err := client.AcceptTerms(context.Background(), "terms-token")
	require.NoError(t, err)
	assert.Equal(t, int32(1), vendor.termsCalls.Load())
	assert.Equal(t, int32(0), vendor.loginCalls.Load(), "terms acceptance must not touch the session")
}

func TestServerErrorWithNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newTransport(srv.URL, zap.NewNop())
	_, err := tr.execute(context.Background(), http.MethodGet, "/llu/connections", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Contains(t, reqErr.URL, "/llu/connections")
}

func TestNonJSONSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	tr := newTransport(srv.URL, zap.NewNop())
	_, err := tr.execute(context.Background(), http.MethodGet, "/account", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Diagnostic, "not valid JSON")
}

func TestUnsupportedMethodFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tr := newTransport(srv.URL, zap.NewNop())
	_, err := tr.execute(context.Background(), http.MethodPut, "/llu/connections", nil, nil)

	require.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDefaultHeadersAreNotMutated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTransport(srv.URL, zap.NewNop())
	_, err := tr.execute(context.Background(), http.MethodGet, "/x", map[string]string{
		"Authorization": "Bearer leak",
		"product":       "other",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "llu.ios", defaultHeaders["product"])
	_, ok := defaultHeaders["Authorization"]
	assert.False(t, ok, "Authorization must never enter the shared default set")
}

func TestHashAccountID(t *testing.T) {
	// SHA-256("abc"), lowercase hex.
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hashAccountID("abc"),
	)
}

func TestRequestErrorText(t *testing.T) {
	err := &RequestError{URL: "https://api.example/llu/connections", Status: 429, Diagnostic: "slow down"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "https://api.example/llu/connections")

	var target *RequestError
	assert.True(t, errors.As(err, &target))
}
