package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/host"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
)

// gatewayClient speaks plain HTTP/JSON to the external render and
// dispatch workers. The
// template engine and provider SDKs live behind those workers; the core
// only ships them typed requests and reads back the result.
type gatewayClient struct {
	renderURL   string
	dispatchURL string
	http        *http.Client
}

func newGatewayClient(renderURL, dispatchURL string) *gatewayClient {
	return &gatewayClient{
		renderURL:   renderURL,
		dispatchURL: dispatchURL,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Render implements processmanager.RenderClient.
func (g *gatewayClient) Render(ctx context.Context, channel notification.Channel, templateData map[string]string) (string, error) {
	var out struct {
		RenderedContent string `json:"rendered_content"`
	}
	err := g.post(ctx, g.renderURL, map[string]any{
		"channel":       channel,
		"template_data": templateData,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.RenderedContent, nil
}

// Dispatch implements processmanager.DispatchClient.
func (g *gatewayClient) Dispatch(ctx context.Context, channel notification.Channel, destination, renderedContent string) (string, error) {
	var out struct {
		ExternalID string `json:"external_id"`
	}
	err := g.post(ctx, g.dispatchURL, map[string]any{
		"channel":          channel,
		"destination":      destination,
		"rendered_content": renderedContent,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ExternalID, nil
}

func (g *gatewayClient) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway call %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// subscriptionTokenGenerator implements processmanager.TokenGenerator:
// mint a token, then durably record it on the owning labour aggregate via
// the host's fetch path so the write shares the actor's gates with every
// other command.
type subscriptionTokenGenerator struct {
	labours *host.Host
	fetch   *host.LabourFetch
}

func (g *subscriptionTokenGenerator) Generate(ctx context.Context, labourID uuid.UUID) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mint subscription token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func (g *subscriptionTokenGenerator) Store(ctx context.Context, labourID uuid.UUID, token string, idempotencyKey uuid.UUID) error {
	return g.labours.Fetch(ctx, labourID, func(ctx context.Context) error {
		_, _, err := g.fetch.HandleSystemCommand(ctx, labourID,
			authz.Action{Kind: authz.ActionSetSubscriptionToken, Domain: true},
			labour.SetSubscriptionToken{Token: token},
			host.IntentCommandMetadata(labourID, idempotencyKey),
		)
		return err
	})
}
