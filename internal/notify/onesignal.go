package notify

import (
	"context"
	"fmt"
	"net/http"
)

const oneSignalEndpoint = "https://onesignal.com/api/v1/notifications"

// OneSignalSender delivers web push notifications to every OneSignal
// subscriber of an app.
type OneSignalSender struct {
	endpoint string
	appID    string
	apiKey   string
	iconURL  string
	client   *http.Client
}

// NewOneSignalSender creates a OneSignalSender. iconURL may be empty.
func NewOneSignalSender(appID, apiKey, iconURL string) *OneSignalSender {
	return &OneSignalSender{
		endpoint: oneSignalEndpoint,
		appID:    appID,
		apiKey:   apiKey,
		iconURL:  iconURL,
		client:   &http.Client{Timeout: DefaultSendTimeout},
	}
}

type oneSignalText struct {
	En string `json:"en"`
}

type oneSignalPayload struct {
	AppID            string        `json:"app_id"`
	IncludedSegments []string      `json:"included_segments"`
	Headings         oneSignalText `json:"headings"`
	Contents         oneSignalText `json:"contents"`
	URL              string        `json:"url,omitempty"`
	ChromeWebIcon    string        `json:"chrome_web_icon,omitempty"`
}

// Send pushes the title and short body to the "All" segment.
func (o *OneSignalSender) Send(ctx context.Context, msg Message) error {
	payload := oneSignalPayload{
		AppID:            o.appID,
		IncludedSegments: []string{"All"},
		Headings:         oneSignalText{En: msg.Title},
		Contents:         oneSignalText{En: msg.Body},
		URL:              msg.URL,
		ChromeWebIcon:    o.iconURL,
	}
	if err := postJSON(ctx, o.client, o.endpoint, "Basic "+o.apiKey, payload); err != nil {
		return fmt.Errorf("onesignal: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (o *OneSignalSender) Name() string {
	return "onesignal"
}
