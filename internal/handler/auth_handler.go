package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const ownerContextKey = "user_id"

type registerPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailPayload struct {
	Email string `json:"email"`
}

func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "invalid registration payload") {
		return
	}

	user, err := a.users.Register(c.Request.Context(), payload.Email, payload.Password, payload.DisplayName)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "登録が完了しました",
		"userId":      user.UserID,
		"displayName": user.DisplayName,
	})
}

// CheckEmail reports whether an address can still be registered.
func (a *API) CheckEmail(c *gin.Context) {
	var payload emailPayload
	if !bindJSON(c, &payload, "invalid email payload") {
		return
	}

	available, err := a.users.EmailAvailable(c.Request.Context(), payload.Email)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// Login exchanges credentials for a bearer token.
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "invalid login payload") {
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	token, expires, err := a.users.IssueToken(user)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "ログインに成功しました",
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
		"user": gin.H{
			"userId":      user.UserID,
			"email":       user.Email,
			"displayName": user.DisplayName,
		},
	})
}

// AuthRequired validates the bearer token and stores the owner id on the context.
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		owner, err := a.users.ParseToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

func (a *API) Me(c *gin.Context) {
	user, err := a.users.GetByUserID(c.Request.Context(), currentOwner(c))
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":      user.UserID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"createdAt":   user.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func currentOwner(c *gin.Context) string {
	return c.GetString(ownerContextKey)
}
