package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"atelier/internal/config"
)

// Gateway talks to the studio's mail gateway over HTTP. The gateway owns
// templating and actual SMTP delivery; we only hand it structured payloads.
type Gateway struct {
	client *resty.Client
	from   string
	logger *zap.Logger
}

type gatewayRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	ToName         string `json:"to_name,omitempty"`
	RoomID         string `json:"room_id"`
	RoomName       string `json:"room_name"`
	Phase          string `json:"phase"`
	PhaseLabel     string `json:"phase_label"`
	CompletedPhase string `json:"completed_phase"`
}

type gatewayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func NewGateway(cfg config.NotifyConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.GatewayURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &Gateway{client: client, from: cfg.FromAddress, logger: logger}
}

func (g *Gateway) Send(ctx context.Context, n Notification) error {
	if n.AssigneeEmail == "" {
		return fmt.Errorf("assignee %s has no email address", n.AssigneeID)
	}
	var out gatewayResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			From:           g.from,
			To:             n.AssigneeEmail,
			ToName:         n.AssigneeName,
			RoomID:         n.RoomID,
			RoomName:       n.RoomName,
			Phase:          n.Phase,
			PhaseLabel:     n.PhaseLabel,
			CompletedPhase: n.CompletedPhase,
		}).
		SetResult(&out).
		Post("/notifications")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("gateway returned %s", resp.Status())
	}
	if !out.Success {
		if out.Error != "" {
			return fmt.Errorf("gateway rejected notification: %s", out.Error)
		}
		return fmt.Errorf("gateway rejected notification")
	}
	g.logger.Debug("notification sent",
		zap.String("to", n.AssigneeEmail),
		zap.String("phase", n.Phase),
		zap.String("room_id", n.RoomID),
	)
	return nil
}
