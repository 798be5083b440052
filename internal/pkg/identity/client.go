package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
)

// Client calls the identity provider's admin API with a service-role key.
type Client struct {
	APIBaseURL string
	ServiceKey string

	HTTPClient *http.Client
}

// Profile is the subset of a user record needed for addressing email.
type Profile struct {
	UserID    string
	Email     string
	FirstName string
}

// NewClientFromEnv builds the admin client from IDENTITY_API_URL and
// IDENTITY_SERVICE_KEY.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("IDENTITY_API_URL", "")), "/"),
		ServiceKey: strings.TrimSpace(env.GetEnv("IDENTITY_SERVICE_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetUser fetches a user record by ID via the admin endpoint.
func (c *Client) GetUser(ctx context.Context, userID string) (*Profile, error) {
	if strings.TrimSpace(c.APIBaseURL) == "" || strings.TrimSpace(c.ServiceKey) == "" {
		return nil, errors.New("IDENTITY_API_URL/IDENTITY_SERVICE_KEY are not configured")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, errors.New("user id is required")
	}

	endpoint := c.APIBaseURL + "/admin/users/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity admin lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FirstName string `json:"first_name"`
		} `json:"user_metadata"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Email) == "" {
		return nil, fmt.Errorf("identity user %s has no email", id)
	}

	return &Profile{
		UserID:    raw.ID,
		Email:     strings.TrimSpace(raw.Email),
		FirstName: strings.TrimSpace(raw.UserMetadata.FirstName),
	}, nil
}

// GetUserProfile is the contact-lookup shape the billing pipeline depends on.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (string, string, error) {
	profile, err := c.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return profile.Email, profile.FirstName, nil
}
