// internal/identity/keycloak.go
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// KeycloakProvider resolves account profiles from Keycloak's admin API using
// the client-credentials flow. The access token is cached until expiry.
type KeycloakProvider struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewKeycloakProvider(baseURL, realm, clientID, clientSecret string) *KeycloakProvider {
	return &KeycloakProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

type keycloakUser struct {
	ID         string              `json:"id"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Username   string              `json:"username"`
	Attributes map[string][]string `json:"attributes"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Profile fetches the account snapshot for the given user id.
func (k *KeycloakProvider) Profile(ctx context.Context, uid string) (*Profile, error) {
	token, err := k.token(ctx)
	if err != nil {
		return nil, err
	}

	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.baseURL, k.realm, url.PathEscape(uid))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("keycloak profile lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user keycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return user.toProfile(), nil
}

// CurrentUser is not resolvable from client credentials alone; the gateway in
// front of the service supplies the identity headers instead.
func (k *KeycloakProvider) CurrentUser(ctx context.Context) (string, string, error) {
	return "", "", fmt.Errorf("current user resolution is delegated to the gateway")
}

func (u *keycloakUser) toProfile() *Profile {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	phone := ""
	if vals, ok := u.Attributes["phone"]; ok && len(vals) > 0 {
		phone = vals[0]
	}
	return &Profile{Name: name, Email: u.Email, Phone: phone}
}

// token returns a cached client-credentials access token, refreshing it when
// expired.
func (k *KeycloakProvider) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	k.accessToken = tok.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return k.accessToken, nil
}
