package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paypiece/internal/config"
	"paypiece/internal/engine"
	"paypiece/internal/loader"
)

const relayFlow = `
name: relay
description: Fetch the checkout named in each notification
trigger:
  piece: onlinepay
  name: onlinepay_webhook
steps:
  - name: fetch
    piece: onlinepay
    action: get_checkout
    input:
      id: "${{ trigger.id }}"
  - name: note
    piece: log
    action: print
    input:
      message: "checkout ${{ steps.fetch.output.status }}"
`

// cli runs the root command with isolated flows and credentials.
func cli(t *testing.T, upstream string, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.yaml"), []byte(relayFlow), 0o644))

	t.Setenv("PAYPIECE_PUBLIC_URL", "https://hooks.example.com")
	t.Setenv("ONLINEPAY_USER_ID", "user")
	t.Setenv("ONLINEPAY_API_KEY", "key")
	t.Setenv("ONLINEPAY_ORG_ID", "org")
	t.Setenv("ONLINEPAY_PAYMENT_CONTRACT_ID", "pc")
	t.Setenv("ONLINEPAY_3DS_CONTRACT_ID", "tds")
	t.Setenv("ONLINEPAY_ENVIRONMENT", upstream)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args,
		"--flows-dir", dir,
		"--env-file", filepath.Join(dir, "missing.env"),
	))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPiecesJSON(t *testing.T) {
	out, err := cli(t, "cst", "pieces", "-o", "json")
	require.NoError(t, err)

	var infos []struct {
		Name string `json:"name"`
		Auth struct {
			Fields []struct {
				Name    string `json:"name"`
				Default string `json:"default"`
			} `json:"fields"`
		} `json:"auth"`
		Actions []struct {
			Name string `json:"name"`
		} `json:"actions"`
		Triggers []struct {
			Name     string `json:"name"`
			Strategy string `json:"strategy"`
		} `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "log", infos[0].Name)

	op := infos[1]
	assert.Equal(t, "onlinepay", op.Name)
	assert.Len(t, op.Auth.Fields, 7)
	assert.Len(t, op.Actions, 4)
	require.Len(t, op.Triggers, 1)
	assert.Equal(t, "onlinepay_webhook", op.Triggers[0].Name)
	assert.Equal(t, "WEBHOOK", op.Triggers[0].Strategy)
}

func TestDescribeSubstitutesWebhookURL(t *testing.T) {
	out, err := cli(t, "cst", "describe", "relay", "-o", "table")
	require.NoError(t, err)

	assert.Contains(t, out, "Webhook URL: https://hooks.example.com/webhooks/relay")
	assert.Contains(t, out, "```text\nhttps://hooks.example.com/webhooks/relay\n```")
	assert.NotContains(t, out, "{{webhookUrl}}")
	assert.Contains(t, out, "get_checkout")
}

func TestListFlows(t *testing.T) {
	out, err := cli(t, "cst", "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"name": "relay",
		"version": "",
		"description": "Fetch the checkout named in each notification",
		"trigger": "onlinepay/onlinepay_webhook",
		"webhook_path": "/webhooks/relay",
		"steps": 2
	}]`, out)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nsteps:\n  - {name: s, piece: onlinepay, action: refund}\n"), 0o644))

	_, err := cli(t, "cst", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `does not support action "refund"`)
}

func TestCallPrintsRawResponse(t *testing.T) {
	var gotAuth, gotPath string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, gotPath = r.Header.Get("Authorization"), r.URL.Path
		io.WriteString(w, `{"id":"cust_1", "email_address":"a@b.co"}`)
	}))
	defer up.Close()

	out, err := cli(t, up.URL, "call", "onlinepay", "get_customer", "--input", `{"id":"cust_1"}`)
	require.NoError(t, err)

	assert.Equal(t, "{\"id\":\"cust_1\", \"email_address\":\"a@b.co\"}\n", out)
	assert.Equal(t, "/oidc/customer-service/v2/customer/cust_1", gotPath)
	assert.Equal(t, "Basic dXNlcjprZXk=", gotAuth)
}

func TestRunDryRun(t *testing.T) {
	out, err := cli(t, "https://unused.invalid", "run", "relay", "--dry-run", "--payload", `{"id":"chk_3"}`)
	require.NoError(t, err)

	var res struct {
		Status string `json:"status"`
		Steps  []struct {
			Status string         `json:"status"`
			Output map[string]any `json:"output"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "dry_run", res.Status)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, map[string]any{"id": "chk_3"}, res.Steps[0].Output)
}

func TestRunRejectsInvalidPayload(t *testing.T) {
	_, err := cli(t, "cst", "run", "relay", "--dry-run", "--payload", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing payload JSON")
}

func TestBundledFlowsAreValid(t *testing.T) {
	flows, err := loader.LoadFlows("../flows")
	require.NoError(t, err)
	require.NotEmpty(t, flows)

	registry, err := defaultRegistry(config.Config{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	for name, flow := range flows {
		assert.NoError(t, engine.ValidateFlow(flow, registry), name)
	}
}
