package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/psytech/auth-backend/internal/common/config"
	"github.com/psytech/auth-backend/internal/common/constants"
	"github.com/psytech/auth-backend/internal/common/logger"
)

const msg91FlowURL = "https://control.msg91.com/api/v5/flow/"

// MSG91Gateway sends OTP codes through the MSG91 flow API.
type MSG91Gateway struct {
	cfg    config.SMSConfig
	client *http.Client
	log    *logger.Logger
}

func NewMSG91Gateway(cfg config.SMSConfig, log *logger.Logger) *MSG91Gateway {
	return &MSG91Gateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: constants.SMSGatewayTimeout,
		},
		log: log,
	}
}

type msg91Recipient struct {
	Mobiles string `json:"mobiles"`
	OTP     string `json:"otp"`
}

type msg91Payload struct {
	TemplateID string           `json:"template_id"`
	Sender     string           `json:"sender"`
	ShortURL   string           `json:"short_url"`
	Recipients []msg91Recipient `json:"recipients"`
}

func (g *MSG91Gateway) Send(ctx context.Context, phoneNumber, code string) error {
	payload := msg91Payload{
		TemplateID: g.cfg.TemplateID,
		Sender:     g.cfg.SenderID,
		ShortURL:   "0",
		Recipients: []msg91Recipient{
			{Mobiles: normalizeMobile(phoneNumber), OTP: code},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg91FlowURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", g.cfg.AuthKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	g.log.WithFields(ctx, logger.Fields{
		"phone_number": phoneNumber,
		"action":       "sms_sent",
	}).Debugf("sms delivered via msg91")
	return nil
}

// normalizeMobile strips the E.164 plus sign; MSG91 expects bare digits with
// the country code.
func normalizeMobile(phoneNumber string) string {
	return strings.TrimPrefix(phoneNumber, "+")
}
