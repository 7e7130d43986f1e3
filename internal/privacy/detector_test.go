package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/logger"
)

func TestRedact(t *testing.T) {
	r, err := New(config.PrivacyConfig{Rules: []string{"all"}}, logger.NewNop())
	require.NoError(t, err)

	res := r.Redact("Mail me at jane.doe@example.com or call +1 555-123-4567 from 10.0.0.12")
	assert.NotContains(t, res.Text, "jane.doe@example.com")
	assert.Contains(t, res.Text, "[MASKED_EMAIL]")
	assert.Contains(t, res.Text, "[MASKED_PHONE]")
	assert.Contains(t, res.Text, "[MASKED_IP_ADDRESS]")
	assert.Len(t, res.Findings, 3)

	t.Run("Clean", func(t *testing.T) {
		res := r.Redact("I has a apple")
		assert.Equal(t, "I has a apple", res.Text)
		assert.Empty(t, res.Findings)
	})

	t.Run("Bearer", func(t *testing.T) {
		res := r.Redact("Authorization: Bearer abcdef123456.xyz")
		assert.Equal(t, "Authorization: [MASKED_BEARER_TOKEN]", res.Text)
	})
}

func TestSelectRules(t *testing.T) {
	t.Run("Subset", func(t *testing.T) {
		r, err := New(config.PrivacyConfig{Rules: []string{"email"}, Replacement: "<{{TYPE}}>"}, logger.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"email"}, r.RuleNames())

		res := r.Redact("a@b.io 10.0.0.1")
		assert.Equal(t, "<EMAIL> 10.0.0.1", res.Text)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := New(config.PrivacyConfig{Rules: []string{"passport"}}, logger.NewNop())
		assert.Error(t, err)
	})

	t.Run("None", func(t *testing.T) {
		r, err := New(config.PrivacyConfig{}, logger.NewNop())
		require.NoError(t, err)
		assert.Empty(t, r.RuleNames())
	})
}
