package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/security"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var ErrOAuthExchange = errors.New("oauth code exchange failed")

// OAuthService fronts SessionManager.Create with the Google login flow.
// Token exchange itself is delegated to the oauth2 client library; this
// service only carries the verified profile claims into a session.
type OAuthService struct {
	oauth       *oauth2.Config
	state       *security.StateSigner
	sessions    SessionManagerInterface
	audit       Auditor
	logger      *slog.Logger
	userInfoURL string
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func NewOAuthService(clientID, clientSecret, redirectURL string, state *security.StateSigner, sessions SessionManagerInterface, audit Auditor, logger *slog.Logger) *OAuthService {
	return &OAuthService{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		state:       state,
		sessions:    sessions,
		audit:       audit,
		logger:      logger,
		userInfoURL: googleUserInfoURL,
	}
}

// LoginURL returns the Google authorization URL carrying a fresh signed
// state parameter.
func (s *OAuthService) LoginURL() (string, error) {
	state, err := s.state.Sign()
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// HandleCallback verifies the state parameter, exchanges the authorization
// code, fetches the user's profile, and creates a session bound to the
// calling client. Returns the new session ID and the identity snapshot.
func (s *OAuthService) HandleCallback(ctx context.Context, state, code, clientIP, userAgent string) (string, *domain.Identity, error) {
	if err := s.state.Verify(state); err != nil {
		return "", nil, err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.WarnContext(ctx, "oauth code exchange failed", "error", err)
		return "", nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return "", nil, err
	}
	userID := info.Sub
	if userID == "" {
		userID = info.ID
	}

	sessionID, err := s.sessions.Create(ctx, CreateInput{
		UserID:    userID,
		Email:     info.Email,
		Name:      info.Name,
		Picture:   info.Picture,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	})
	if err != nil {
		return "", nil, err
	}

	s.audit.Emit(ctx, observability.EventLoginSuccess, observability.SeverityInfo,
		"user_id", userID,
		"provider", "google",
		"session_prefix", security.LogPrefix(sessionID),
	)
	return sessionID, &domain.Identity{
		UserID:  userID,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

func (s *OAuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}
