// Package libreview implements an authenticated client for the LibreView
// continuous-glucose-monitor API (the backend behind the LibreLinkUp app).
//
// The vendor issues a short-lived bearer token at login and additionally
// requires an `account-id` header holding the SHA-256 hex digest of the
// account id on every authenticated call. The client authenticates lazily:
// the first authenticated operation triggers a single login, and subsequent
// operations reuse the session until the process exits. There is no token
// refresh and no logout.
package libreview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Client exposes the LibreView operations used by the collector. All
// authenticated operations return the decoded vendor payload unchanged;
// interpreting readings is the glucose package's job.
type Client struct {
	transport *transport
	session   *session
	logger    *zap.Logger
}

// NewClient builds a client for the given account. host may be empty, in
// which case the production API host is used.
func NewClient(host, email, password string, logger *zap.Logger) *Client {
	if host == "" {
		host = DefaultHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: newTransport(host, logger),
		session:   &session{email: email, password: password},
		logger:    logger,
	}
}

// Authenticate logs in explicitly. Empty email/password fall back to the
// credentials supplied at construction. Most callers never need this; any
// authenticated operation logs in on first use.
func (c *Client) Authenticate(ctx context.Context, email, password string) (token, accountID string, err error) {
	token, accountID, err = c.session.authenticate(ctx, c.transport, email, password)
	if err != nil {
		return "", "", err
	}
	c.logger.Info("authenticated with LibreView")
	return token, accountID, nil
}

// Connections fetches the monitored-patient list. By vendor convention each
// entry embeds the patient's most recent glucose reading.
func (c *Client) Connections(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/llu/connections")
}

// LatestReading returns the first entry of the connections list. The vendor
// does not document the list as recency-ordered; first-entry selection is an
// assumption carried over from the official apps, not a guarantee. Callers
// that need a specific patient should use LatestReadingFor.
func (c *Client) LatestReading(ctx context.Context) (json.RawMessage, error) {
	readings, err := c.readings(ctx)
	if err != nil {
		return nil, err
	}
	return readings[0], nil
}

// LatestReadingFor returns the connections entry whose patientId matches.
func (c *Client) LatestReadingFor(ctx context.Context, patientID string) (json.RawMessage, error) {
	readings, err := c.readings(ctx)
	if err != nil {
		return nil, err
	}
	for _, raw := range readings {
		var probe struct {
			PatientID string `json:"patientId"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if probe.PatientID == patientID {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: no entry for patient %s", ErrNoConnections, patientID)
}

// Graph fetches the historical glucose series for one patient.
func (c *Client) Graph(ctx context.Context, patientID string) (json.RawMessage, error) {
	return c.get(ctx, "/llu/connections/"+patientID+"/graph")
}

// Logbook fetches the glucose event log for one patient.
func (c *Client) Logbook(ctx context.Context, patientID string) (json.RawMessage, error) {
	return c.get(ctx, "/llu/connections/"+patientID+"/logbook")
}

// AccountData fetches the account profile of the authenticated user.
func (c *Client) AccountData(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/account")
}

// AcceptTerms accepts the terms of use. It signs with the caller-supplied
// single-use terms token rather than the session's bearer token, and sends
// no account-id header; the vendor hands out the terms token before a full
// session exists.
func (c *Client) AcceptTerms(ctx context.Context, termsToken string) (json.RawMessage, error) {
	return c.transport.execute(ctx, http.MethodPost, "/auth/continue/tou", map[string]string{
		"Authorization": "Bearer " + termsToken,
	}, nil)
}

func (c *Client) readings(ctx context.Context) ([]json.RawMessage, error) {
	raw, err := c.Connections(ctx)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("libreview: decoding connections envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, ErrNoConnections
	}
	return envelope.Data, nil
}

// get runs one authenticated GET, logging in first if the session is fresh.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	return c.transport.execute(ctx, http.MethodGet, path, headers, nil)
}

// authHeaders builds the per-request authentication headers. The account-id
// digest is computed fresh on every call; it is cheap and must always
// reflect the current account id.
func (c *Client) authHeaders(ctx context.Context) (map[string]string, error) {
	token, accountID, err := c.session.ensure(ctx, c.transport)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
		"account-id":    hashAccountID(accountID),
	}, nil
}

// hashAccountID returns the lowercase hex SHA-256 digest of the account id,
// the value the vendor expects in the account-id header.
func hashAccountID(accountID string) string {
	sum := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(sum[:])
}
