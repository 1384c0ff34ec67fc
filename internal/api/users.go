package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"notespace/client/internal/content"
	"notespace/client/internal/session"
)

type User struct {
	ID              content.ID `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
}

// DisplayName is the name shown next to the user's cursor.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/me/"}, &user)
	return user, err
}

type Notification struct {
	ID             content.ID      `json:"id"`
	Sender         content.ID      `json:"sender"`
	SenderUsername string          `json:"sender_username"`
	Type           string          `json:"type"`
	Content        json.RawMessage `json:"content"`
	IsRead         bool            `json:"is_read"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var items []Notification
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/notifications/"}, &items)
	return items, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id content.ID) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/users/" + url.PathEscape(id.String()) + "/mark_as_read/"}, nil)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Registration struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

func (c *Client) Register(ctx context.Context, in Registration) error {
	if err := validate.Struct(in); err != nil {
		return &Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: err.Error()}
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/register/", body: in, anonymous: true}, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, email, otp string) error {
	body := map[string]string{"email": email, "otp": otp}
	return c.do(ctx, request{method: http.MethodPost, path: "/verify-email/", body: body, anonymous: true}, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, request{method: http.MethodPost, path: "/resend-verification/", body: body, anonymous: true}, nil)
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tokens session.Tokens
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/token/", body: body, anonymous: true}, &tokens); err != nil {
		return err
	}
	if tokens.Access == "" {
		return fmt.Errorf("login: response carried no access token")
	}
	if err := c.tokens.Save(ctx, tokens); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Clear(ctx)
}
