package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Metrics.SlowRequestThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Metrics.SlowOperationThreshold)
	assert.Equal(t, 100, cfg.Metrics.SlowLogSize)
	assert.Equal(t, time.Hour, cfg.Metrics.Retention)

	assert.Equal(t, 5*time.Second, cfg.Health.CheckTimeout)
	assert.Equal(t, 100, cfg.Health.HistorySize)

	assert.Equal(t, Thresholds{Warning: 5, Critical: 10}, cfg.Alerting.ErrorRate)
	assert.Equal(t, Thresholds{Warning: 1000, Critical: 3000}, cfg.Alerting.ResponseTime)
	assert.Equal(t, 5*time.Minute, cfg.Alerting.SuppressionWindow)
	assert.Equal(t, time.Minute, cfg.Alerting.EvaluationInterval)
	assert.Equal(t, 500, cfg.Alerting.HistorySize)
	assert.False(t, cfg.Alerting.Email.Enabled)
	assert.False(t, cfg.Alerting.Webhook.Enabled)
	assert.False(t, cfg.Alerting.Chat.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALERT_CPU_WARNING", "60")
	t.Setenv("ALERT_CPU_CRITICAL", "70")
	t.Setenv("ALERT_SUPPRESSION_WINDOW", "30s")
	t.Setenv("METRICS_SLOW_REQUEST_MS", "250")
	t.Setenv("ALERT_EMAIL_ENABLED", "true")
	t.Setenv("ALERT_EMAIL_SMTP_ADDR", "smtp.local:25")
	t.Setenv("ALERT_EMAIL_RECIPIENTS", "ops@crm.local, oncall@crm.local")
	t.Setenv("CLOUDWATCH_METRICS_DIMENSIONS", "Env=prod,Service=crm")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Thresholds{Warning: 60, Critical: 70}, cfg.Alerting.CPU)
	assert.Equal(t, 30*time.Second, cfg.Alerting.SuppressionWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Metrics.SlowRequestThreshold)
	assert.Equal(t, []string{"ops@crm.local", "oncall@crm.local"}, cfg.Alerting.Email.Recipients)
	assert.Equal(t, map[string]string{"Env": "prod", "Service": "crm"}, cfg.CloudWatch.MetricsDimensions)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.Security.TrustedProxies)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad duration",
			env:     map[string]string{"ALERT_EVALUATION_INTERVAL": "soon"},
			wantErr: "invalid ALERT_EVALUATION_INTERVAL",
		},
		{
			name:    "warning above critical",
			env:     map[string]string{"ALERT_MEMORY_WARNING": "95", "ALERT_MEMORY_CRITICAL": "90"},
			wantErr: "ALERT_MEMORY_WARNING",
		},
		{
			name:    "bad trusted proxy",
			env:     map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8, proxy.local"},
			wantErr: "TRUSTED_PROXIES",
		},
		{
			name:    "webhook without url",
			env:     map[string]string{"ALERT_WEBHOOK_ENABLED": "true"},
			wantErr: "ALERT_WEBHOOK_URL",
		},
		{
			name:    "auth without token",
			env:     map[string]string{"AUTH_ENABLED": "true"},
			wantErr: "AUTH_BEARER_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
