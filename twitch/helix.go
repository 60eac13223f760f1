package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultHelixURL is the production Helix API base.
	DefaultHelixURL = "https://api.twitch.tv/helix"
	// DefaultTokenURL is where app access tokens are minted.
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
)

// ErrUserNotFound reports a login that does not exist on Twitch.
var ErrUserNotFound = errors.New("user not found")

// AppTokenSource mints and refreshes Twitch app access tokens with the
// client credentials grant. Twitch wants the credentials in the request
// body. tokenURL falls back to DefaultTokenURL.
func AppTokenSource(ctx context.Context, clientID, clientSecret, tokenURL string) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.TokenSource(ctx)
}

// HelixClient is the minimal Helix surface the feed needs: user lookups and
// stream liveness. BaseURL and HTTPClient default when empty.
type HelixClient struct {
	ClientID    string
	TokenSource oauth2.TokenSource
	BaseURL     string
	HTTPClient  *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return strings.TrimSuffix(hc.BaseURL, "/")
	}
	return DefaultHelixURL
}

func (hc *HelixClient) do(ctx context.Context, path string, query url.Values, out any) error {
	if hc.TokenSource == nil {
		return errors.New("helix client has no token source")
	}
	tok, err := hc.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("app token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("err", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login to its user id, or ErrUserNotFound.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.do(ctx, "/users", url.Values{"login": {login}}, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 {
		return "", fmt.Errorf("login %q: %w", login, ErrUserNotFound)
	}
	return out.Data[0].ID, nil
}

// Stream is the subset of Helix stream fields the feed reads.
type Stream struct {
	ID          string    `json:"id"`
	UserLogin   string    `json:"user_login"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

// GetStreams returns the live streams for login. Offline channels yield an
// empty slice, not an error.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var out struct {
		Data []Stream `json:"data"`
	}
	if err := hc.do(ctx, "/streams", url.Values{"user_login": {login}}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// IsLive reports whether login is streaming right now.
func (hc *HelixClient) IsLive(ctx context.Context, login string) (bool, error) {
	streams, err := hc.GetStreams(ctx, login)
	if err != nil {
		return false, err
	}
	return len(streams) > 0, nil
}
