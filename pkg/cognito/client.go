package cognito

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"account-service/pkg/config"

	"go.uber.org/zap"
)

// Exception types returned by the user pool service that callers branch on.
const (
	ErrUsernameExists   = "UsernameExistsException"
	ErrNotAuthorized    = "NotAuthorizedException"
	ErrUserNotConfirmed = "UserNotConfirmedException"
	ErrUserNotFound     = "UserNotFoundException"
	ErrInvalidPassword  = "InvalidPasswordException"
	ErrCodeMismatch     = "CodeMismatchException"
	ErrExpiredCode      = "ExpiredCodeException"
)

// APIError is a rejection from the user pool service, carrying the
// provider's exception type for caller-side branching.
type APIError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cognito: %s: %s", e.Type, e.Message)
}

// IsUsernameExists reports whether err is the provider's duplicate-user rejection.
func IsUsernameExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrUsernameExists
}

// Client talks to the hosted user pool service over its JSON protocol.
// Construct it once at process start and pass it to workflows explicitly.
type Client struct {
	Endpoint   string
	UserPoolID string
	ClientID   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a new user pool client from configuration
func NewClient(cfg *config.CognitoConfig, logger *zap.Logger) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		UserPoolID: cfg.UserPoolID,
		ClientID:   cfg.ClientID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

// AttributeType is a name/value user attribute
type AttributeType struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// RegisterOutput is the result of a successful registration
type RegisterOutput struct {
	UserConfirmed bool   `json:"UserConfirmed"`
	UserSub       string `json:"UserSub"`
}

// AuthResult holds the tokens issued by the provider on authentication
type AuthResult struct {
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	IDToken      string `json:"IdToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

// CodeDeliveryDetails describes where a confirmation code was sent
type CodeDeliveryDetails struct {
	Destination    string `json:"Destination"`
	DeliveryMedium string `json:"DeliveryMedium"`
	AttributeName  string `json:"AttributeName"`
}

// Register creates a credential pair in the user pool with the display name attribute
func (c *Client) Register(email, password, name string) (*RegisterOutput, error) {
	c.Logger.Info("Registering user with identity provider", zap.String("email", email))

	req := struct {
		ClientId       string          `json:"ClientId"`
		Username       string          `json:"Username"`
		Password       string          `json:"Password"`
		UserAttributes []AttributeType `json:"UserAttributes"`
	}{
		ClientId: c.ClientID,
		Username: email,
		Password: password,
		UserAttributes: []AttributeType{
			{Name: "name", Value: name},
		},
	}

	var out RegisterOutput
	if err := c.call("SignUp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Authenticate exchanges a credential pair for provider tokens
func (c *Client) Authenticate(email, password string) (*AuthResult, error) {
	c.Logger.Info("Authenticating user with identity provider", zap.String("email", email))

	req := struct {
		AuthFlow       string            `json:"AuthFlow"`
		ClientId       string            `json:"ClientId"`
		AuthParameters map[string]string `json:"AuthParameters"`
	}{
		AuthFlow: "USER_PASSWORD_AUTH",
		ClientId: c.ClientID,
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	}

	var out struct {
		AuthenticationResult AuthResult `json:"AuthenticationResult"`
	}
	if err := c.call("InitiateAuth", req, &out); err != nil {
		return nil, err
	}
	return &out.AuthenticationResult, nil
}

// ResendConfirmationCode asks the provider to resend the signup confirmation code
func (c *Client) ResendConfirmationCode(email string) (*CodeDeliveryDetails, error) {
	req := struct {
		ClientId string `json:"ClientId"`
		Username string `json:"Username"`
	}{ClientId: c.ClientID, Username: email}

	var out struct {
		CodeDeliveryDetails CodeDeliveryDetails `json:"CodeDeliveryDetails"`
	}
	if err := c.call("ResendConfirmationCode", req, &out); err != nil {
		return nil, err
	}
	return &out.CodeDeliveryDetails, nil
}

// ChangePassword authenticates with the current password, then rotates it.
// The provider requires a fresh access token for the change call.
func (c *Client) ChangePassword(email, currentPassword, newPassword string) error {
	auth, err := c.Authenticate(email, currentPassword)
	if err != nil {
		return err
	}

	req := struct {
		AccessToken      string `json:"AccessToken"`
		PreviousPassword string `json:"PreviousPassword"`
		ProposedPassword string `json:"ProposedPassword"`
	}{AccessToken: auth.AccessToken, PreviousPassword: currentPassword, ProposedPassword: newPassword}

	return c.call("ChangePassword", req, &struct{}{})
}

// ForgotPassword starts the provider's password recovery flow
func (c *Client) ForgotPassword(email string) (*CodeDeliveryDetails, error) {
	req := struct {
		ClientId string `json:"ClientId"`
		Username string `json:"Username"`
	}{ClientId: c.ClientID, Username: email}

	var out struct {
		CodeDeliveryDetails CodeDeliveryDetails `json:"CodeDeliveryDetails"`
	}
	if err := c.call("ForgotPassword", req, &out); err != nil {
		return nil, err
	}
	return &out.CodeDeliveryDetails, nil
}

// ConfirmForgotPassword completes password recovery with the emailed code
func (c *Client) ConfirmForgotPassword(email, confirmationCode, newPassword string) error {
	req := struct {
		ClientId         string `json:"ClientId"`
		Username         string `json:"Username"`
		ConfirmationCode string `json:"ConfirmationCode"`
		Password         string `json:"Password"`
	}{ClientId: c.ClientID, Username: email, ConfirmationCode: confirmationCode, Password: newPassword}

	return c.call("ConfirmForgotPassword", req, &struct{}{})
}

// call performs one action against the user pool JSON API
func (c *Client) call(action string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.Endpoint+"/", bytes.NewReader(payload))
	if err != nil {
		c.Logger.Error("Failed to create provider request", zap.Error(err))
		return err
	}

	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService."+action)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Provider request failed", zap.String("action", action), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Logger.Error("Failed to read provider response", zap.String("action", action), zap.Error(err))
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Type == "" {
			c.Logger.Error("Unparseable provider error",
				zap.String("action", action),
				zap.Int("status_code", resp.StatusCode),
				zap.String("response", string(body)))
			return fmt.Errorf("cognito: %s failed: %d %s", action, resp.StatusCode, string(body))
		}
		// The service may fully qualify the type, e.g. "com.amazon...#UsernameExistsException"
		if i := strings.LastIndex(apiErr.Type, "#"); i >= 0 {
			apiErr.Type = apiErr.Type[i+1:]
		}
		c.Logger.Warn("Provider rejected request",
			zap.String("action", action),
			zap.String("type", apiErr.Type),
			zap.String("message", apiErr.Message))
		return &apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.Logger.Error("Failed to parse provider response", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}
