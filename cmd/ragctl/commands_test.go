package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/config"
	"rag-chat-api/pkg/utils"
)

func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	prev := configLoader
	configLoader = func() (*config.Config, error) { return cfg, nil }
	t.Cleanup(func() { configLoader = prev })
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Observability.Logging.Level = "error"
	cfg.Observability.Logging.Format = "text"
	cfg.Security.JWT.Secret = "test-secret"
	cfg.Security.JWT.Issuer = "rag-chat"
	cfg.Security.JWT.Expiration = time.Hour
	return cfg
}

func TestTokenCmd_IssuesParsableToken(t *testing.T) {
	withConfig(t, testConfig())

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--user", "user-42"})
	require.NoError(t, root.Execute())

	claims, err := utils.NewJWTManager("test-secret", "rag-chat").ParseToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "access", claims.Type)
}

func TestTokenCmd_RequiresUser(t *testing.T) {
	withConfig(t, testConfig())

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "ragctl dev")
}
