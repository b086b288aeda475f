package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope       = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpointFmt = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
)

// FCMGateway sends through the Firebase Cloud Messaging HTTP v1 API.
type FCMGateway struct {
	endpoint string
	client   *http.Client
}

// NewFCMGateway builds a gateway authenticated with a service-account JSON file.
func NewFCMGateway(ctx context.Context, projectID string, credentialsFile string) (*FCMGateway, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read firebase credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse firebase credentials: %w", err)
	}

	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	return NewFCMGatewayWithTokenSource(ctx, fmt.Sprintf(fcmEndpointFmt, projectID), creds.TokenSource), nil
}

// NewFCMGatewayWithTokenSource is used with a custom endpoint or token source.
func NewFCMGatewayWithTokenSource(ctx context.Context, endpoint string, ts oauth2.TokenSource) *FCMGateway {
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = 10 * time.Second
	return &FCMGateway{endpoint: endpoint, client: client}
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *FCMGateway) Send(ctx context.Context, deviceToken string, msg Message) error {
	payload, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        deviceToken,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}})
	if err != nil {
		return fmt.Errorf("encode fcm message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var parsed fcmError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&parsed)

	if resp.StatusCode == http.StatusNotFound || parsed.Error.Status == "UNREGISTERED" {
		return ErrInvalidDeviceToken
	}

	return fmt.Errorf("fcm responded %d: %s", resp.StatusCode, parsed.Error.Message)
}
