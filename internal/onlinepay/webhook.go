package onlinepay

import (
	"context"

	"go.uber.org/zap"

	"paypiece/internal/plugin"
)

const webhookInstructions = `To use this trigger, manually configure a OnlinePay notification:
1. Go to OnlinePay > Administration > Notifications.
2. Select the 'Create new notification'.
3. Enter a 'Name'
4. Select your 'Organisation'
5. Select the Events to subscribe to (Eg):
    CheckoutTransactionSuccess
    CheckoutTransactionFailed
6. In the 'URL Endpoint', set the URL to:

` + "```text\n{{webhookUrl}}\n```" + `

7. Select 'Webhook type' to 'Full event payload'.
8. Click 'Save'.
`

// WebhookTrigger relays OnlinePay notifications into a flow. Notifications
// are registered by hand in the OnlinePay dashboard, so enabling and
// disabling the trigger does nothing.
type WebhookTrigger struct {
	log *zap.SugaredLogger
}

func NewWebhookTrigger(log *zap.SugaredLogger) *WebhookTrigger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WebhookTrigger{log: log}
}

func (w *WebhookTrigger) Name() string { return "onlinepay_webhook" }

func (w *WebhookTrigger) Def() plugin.TriggerDef {
	return plugin.TriggerDef{
		Name:         w.Name(),
		DisplayName:  "Receive OnlinePay Webhook",
		Description:  "Used to receive events from OnlinePay via webhooks",
		Strategy:     plugin.StrategyWebhook,
		Instructions: webhookInstructions,
		SampleData: map[string]any{
			"id":                 "b7c02d36-90db-4cc3-b174-868ed8a734c8",
			"amount":             4200,
			"merchant_reference": "ORDER-12345",
			"status":             "ACTIVE",
		},
	}
}

func (w *WebhookTrigger) OnEnable(context.Context, plugin.Connection) error { return nil }

func (w *WebhookTrigger) OnDisable(context.Context, plugin.Connection) error { return nil }

// Run returns the delivered body as the only item.
func (w *WebhookTrigger) Run(_ context.Context, _ plugin.Connection, payload plugin.Payload) ([]any, error) {
	w.log.Debugw("onlinepay webhook received", "bytes", len(payload.Body))
	body := make([]byte, len(payload.Body))
	copy(body, payload.Body)
	return []any{RawOutput(body)}, nil
}
