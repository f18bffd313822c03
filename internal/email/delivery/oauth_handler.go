package delivery

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"email-agent-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	oauthStateTTL     = 10 * time.Minute
	oauthStatePurpose = "gmail_oauth"
)

var errInvalidState = errors.New("invalid oauth state")

// OAuthProvider is the authorization-code half of the Gmail OAuth client
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthHandler runs the server-side consent flow. The user id travels
// through Google in a short-lived signed state token.
type OAuthHandler struct {
	oauth       OAuthProvider
	connections usecase.ConnectionUsecase
	secret      []byte
	frontendURL string
	now         func() time.Time
}

func NewOAuthHandler(oauth OAuthProvider, connections usecase.ConnectionUsecase, jwtSecret, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		oauth:       oauth,
		connections: connections,
		secret:      []byte(jwtSecret),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// Start GET /api/email-agent/oauth/gmail
func (h *OAuthHandler) Start(c *gin.Context) {
	state, err := h.signState(c.GetString("userID"))
	if err != nil {
		log.Printf("[EmailAgent] Failed to sign oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start oauth flow"})
		return
	}

	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// Callback GET /api/email-agent/oauth/gmail/callback
func (h *OAuthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		log.Printf("[EmailAgent] OAuth consent returned error: %s", errParam)
		h.redirectFailure(c)
		return
	}

	userID, err := h.parseState(c.Query("state"))
	if err != nil {
		log.Printf("[EmailAgent] OAuth callback rejected: %v", err)
		h.redirectFailure(c)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.redirectFailure(c)
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Printf("[EmailAgent] OAuth code exchange failed for user %s: %v", userID, err)
		h.redirectFailure(c)
		return
	}

	if err := h.connections.Connect(ctx, userID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		log.Printf("[EmailAgent] OAuth connect failed for user %s: %v", userID, err)
		h.redirectFailure(c)
		return
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/settings?success=gmail_connected")
}

func (h *OAuthHandler) redirectFailure(c *gin.Context) {
	c.Redirect(http.StatusFound, h.frontendURL+"/settings?error=oauth_failed")
}

func (h *OAuthHandler) signState(userID string) (string, error) {
	now := h.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"purpose": oauthStatePurpose,
		"exp":     now.Add(oauthStateTTL).Unix(),
		"iat":     now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *OAuthHandler) parseState(state string) (string, error) {
	if state == "" {
		return "", errInvalidState
	}

	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(h.now))
	if err != nil || !token.Valid {
		return "", errInvalidState
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != oauthStatePurpose {
		return "", errInvalidState
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errInvalidState
	}
	return userID, nil
}
