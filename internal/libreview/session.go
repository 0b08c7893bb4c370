package libreview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

const loginPath = "/llu/auth/login"

// authResponse mirrors the login payload paths the session depends on:
// data.authTicket.token and data.user.id.
type authResponse struct {
	Data struct {
		AuthTicket struct {
			Token string `json:"token"`
		} `json:"authTicket"`
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"data"`
}

// session holds the credentials and the lazily-obtained token/account id pair.
//
// It is a two-state machine: unauthenticated (token and accountID both empty)
// or authenticated (both set). The only transition is a successful login; a
// failed request never downgrades the state. The mutex makes the transition
// single-flight: concurrent callers block on the same login attempt instead
// of issuing duplicate requests.
type session struct {
	email    string
	password string

	mu        sync.Mutex
	token     string
	accountID string
}

// ensure returns the current token/account id, logging in first when the
// session is unauthenticated.
func (s *session) ensure(ctx context.Context, t *transport) (token, accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, s.accountID, nil
	}
	if err := s.loginLocked(ctx, t, s.email, s.password); err != nil {
		return "", "", err
	}
	return s.token, s.accountID, nil
}

// authenticate logs in with the supplied credentials, falling back to the
// stored ones when they are empty, and replaces the session state on success.
func (s *session) authenticate(ctx context.Context, t *transport, email, password string) (token, accountID string, err error) {
	if email == "" {
		email = s.email
	}
	if password == "" {
		password = s.password
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loginLocked(ctx, t, email, password); err != nil {
		return "", "", err
	}
	return s.token, s.accountID, nil
}

// loginLocked performs the login POST. The call is anonymous: it carries no
// Authorization or account-id header, since it is the mechanism that produces
// them. Callers must hold s.mu; the transport is used directly so the login
// can never recurse into ensure. On any failure the session state is left
// untouched, and on success token and accountID are set together, never
// one without the other.
func (s *session) loginLocked(ctx context.Context, t *transport, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	raw, err := t.execute(ctx, http.MethodPost, loginPath, nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAuthResponse, err)
	}

	token := resp.Data.AuthTicket.Token
	accountID := resp.Data.User.ID
	if token == "" {
		return fmt.Errorf("%w: data.authTicket.token", ErrMalformedAuthResponse)
	}
	if accountID == "" {
		return fmt.Errorf("%w: data.user.id", ErrMalformedAuthResponse)
	}

	s.token = token
	s.accountID = accountID
	return nil
}
