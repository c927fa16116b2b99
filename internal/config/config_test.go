package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paypiece/internal/onlinepay"
)

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := `# OnlinePay sandbox
ONLINEPAY_USER_ID=user-1
ONLINEPAY_API_KEY="sk-test-123"
ONLINEPAY_ORG_ID=org-1
ONLINEPAY_PAYMENT_CONTRACT_ID=pc-1
ONLINEPAY_3DS_CONTRACT_ID=3ds-1
ONLINEPAY_ENVIRONMENT=cst
PAYPIECE_HTTP_TIMEOUT_SEC=5
`
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for _, k := range []string{
		"ONLINEPAY_USER_ID", "ONLINEPAY_API_KEY", "ONLINEPAY_ORG_ID", "ONLINEPAY_PAYMENT_CONTRACT_ID",
		"ONLINEPAY_3DS_CONTRACT_ID", "ONLINEPAY_ENVIRONMENT", "ONLINEPAY_CURRENCY_CODE", "PAYPIECE_HTTP_TIMEOUT_SEC",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	conn := cfg.Connections["onlinepay"]
	require.Equal(t, "user-1", conn[onlinepay.FieldUserID])
	require.Equal(t, "sk-test-123", conn[onlinepay.FieldAPIKey])
	require.Equal(t, onlinepay.CSTURL, conn[onlinepay.FieldEnvironment])
	require.Equal(t, "AUD", conn[onlinepay.FieldCurrencyCode])
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.NoError(t, onlinepay.CredentialsFromConnection(conn).Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYPIECE_HTTP_ADDR", "")
	t.Setenv("ONLINEPAY_ENVIRONMENT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, onlinepay.ProductionURL, cfg.Connections["onlinepay"][onlinepay.FieldEnvironment])
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ONLINEPAY_ORG_ID=from-file\n"), 0o644))
	t.Setenv("ONLINEPAY_ORG_ID", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Connections["onlinepay"][onlinepay.FieldOrgID])
}
