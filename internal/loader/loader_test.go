package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFlow(t *testing.T) {
	path := writeFile(t, t.TempDir(), "checkout.yaml", `
name: checkout-on-order
version: "1.0"
description: "Create a checkout for every order event"
trigger:
  piece: onlinepay
  name: onlinepay_webhook
  path: /hooks/orders
steps:
  - name: create-checkout
    piece: onlinepay
    action: create_checkout
    input:
      merchant_reference: "${{ trigger.reference }}"
      amount: "${{ trigger.amount }}"
      customer: "${{ trigger.customer_id }}"
    on_error: abort
metadata:
  owner: payments
`)

	flow, err := LoadFlow(path)
	require.NoError(t, err)

	assert.Equal(t, "checkout-on-order", flow.Name)
	assert.Equal(t, "1.0", flow.Version)
	require.NotNil(t, flow.Trigger)
	assert.Equal(t, "onlinepay", flow.Trigger.Piece)
	assert.Equal(t, "onlinepay_webhook", flow.Trigger.Name)
	assert.Equal(t, "/hooks/orders", flow.WebhookPath())
	require.Len(t, flow.Steps, 1)
	assert.Equal(t, "onlinepay", flow.Steps[0].Piece)
	assert.Equal(t, "create_checkout", flow.Steps[0].Action)
	assert.Equal(t, "${{ trigger.amount }}", flow.Steps[0].Input["amount"])
	assert.Equal(t, "payments", flow.Metadata["owner"])
}

func TestLoadFlowDefaultWebhookPath(t *testing.T) {
	flow, err := Parse([]byte(`
name: relay
trigger: {piece: onlinepay, name: onlinepay_webhook}
steps:
  - {name: s, piece: log, action: print, input: {message: hi}}
`))
	require.NoError(t, err)
	assert.Equal(t, "/webhooks/relay", flow.WebhookPath())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		doc  string
		want string
	}{
		"missing name": {
			doc:  "steps:\n  - {name: s, piece: log, action: print}\n",
			want: "missing required field 'name'",
		},
		"no steps": {
			doc:  "name: empty\n",
			want: "must have at least one step",
		},
		"unknown field": {
			doc:  "name: old\nsteps:\n  - {name: s, connector: log, action: print}\n",
			want: "field connector not found",
		},
		"empty": {
			doc:  "",
			want: "empty flow document",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFlowMissingFile(t *testing.T) {
	_, err := LoadFlow(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFlows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: flow-a\nsteps:\n  - {name: s, piece: log, action: print}\n")
	writeFile(t, dir, "nested/b.yml", "name: flow-b\ntrigger: {piece: onlinepay, name: onlinepay_webhook}\nsteps:\n  - {name: s, piece: log, action: print}\n")
	writeFile(t, dir, "ignore.txt", "not a flow")

	flows, err := LoadFlows(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"flow-a", "flow-b"}, Names(flows))
}

func TestLoadFlowsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	content := "name: duplicate\nsteps:\n  - {name: s, piece: log, action: print}\n"
	writeFile(t, dir, "a.yaml", content)
	writeFile(t, dir, "b.yaml", content)

	_, err := LoadFlows(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate flow name "duplicate"`)
}

func TestLoadFlowsDuplicateWebhookPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\ntrigger: {piece: onlinepay, name: onlinepay_webhook, path: /hook}\nsteps:\n  - {name: s, piece: log, action: print}\n")
	writeFile(t, dir, "b.yaml", "name: b\ntrigger: {piece: onlinepay, name: onlinepay_webhook, path: /hook}\nsteps:\n  - {name: s, piece: log, action: print}\n")

	_, err := LoadFlows(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook path /hook already used")
}
