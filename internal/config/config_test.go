package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "8080", cfg.App.Port)
				require.Equal(t, "8081", cfg.Realtime.Port)
				require.Equal(t, StoreDriverMemory, cfg.Store.Driver)
				require.Equal(t, 3, cfg.Handoff.DefaultMaxChats)
				require.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
				require.Equal(t, 54*time.Second, cfg.Realtime.PingPeriod)
				require.Equal(t, []string{"*"}, cfg.Realtime.AllowedOrigins)
				require.Contains(t, cfg.Handoff.EscalationKeywords, "human")
				require.Equal(t, DynamoModeAWS, cfg.Dynamo.Mode)
				require.Equal(t, "chat-handoff", cfg.Dynamo.Table)
				require.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
				require.Equal(t, "json", cfg.Logger.Format)
				require.Equal(t, 3, cfg.Redis.DialTimeoutSeconds)
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"APP_PORT":                    "9000",
				"STORE_DRIVER":                "Redis",
				"HANDOFF_DEFAULT_MAX_CHATS":   "5",
				"HANDOFF_ESCALATION_KEYWORDS": " agent , , supervisor",
				"HANDOFF_MIN_AI_CONFIDENCE":   "0.4",
				"WS_READ_TIMEOUT":             "30",
				"ALLOWED_ORIGINS":             "http://a.example, http://b.example",
				"LOG_FORMAT":                  "Console",
			},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "0.0.0.0:9000", cfg.App.Addr())
				require.Equal(t, StoreDriverRedis, cfg.Store.Driver)
				require.Equal(t, 5, cfg.Handoff.DefaultMaxChats)
				require.Equal(t, []string{"agent", "supervisor"}, cfg.Handoff.EscalationKeywords)
				require.InDelta(t, 0.4, cfg.Handoff.MinAIConfidence, 1e-9)
				require.Equal(t, 30*time.Second, cfg.Realtime.PongWait)
				require.Len(t, cfg.Realtime.AllowedOrigins, 2)
				require.Equal(t, "console", cfg.Logger.Format)
			},
		},
		{
			name:    "invalid store driver",
			env:     map[string]string{"STORE_DRIVER": "mongo"},
			wantErr: true,
		},
		{
			name:    "invalid redis db",
			env:     map[string]string{"REDIS_DB": "abc"},
			wantErr: true,
		},
		{
			name: "dynamodb local",
			env: map[string]string{
				"STORE_DRIVER":    "dynamodb",
				"DYNAMO_MODE":     "LOCAL",
				"DYNAMO_ENDPOINT": "http://dynamo:8000",
			},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, StoreDriverDynamo, cfg.Store.Driver)
				require.Equal(t, DynamoModeLocal, cfg.Dynamo.Mode)
				require.Equal(t, "http://dynamo:8000", cfg.Dynamo.Endpoint)
			},
		},
		{
			name: "invalid ints fall back",
			env:  map[string]string{"HANDOFF_DEFAULT_MAX_CHATS": "lots"},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, 3, cfg.Handoff.DefaultMaxChats)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	require.Equal(t, time.Duration(0), AppConfig{}.RequestTimeout())
	require.Equal(t, 20*time.Second, AIConfig{}.Timeout())
	require.Equal(t, 3*time.Second, AIConfig{TimeoutSeconds: 3}.Timeout())
	require.Equal(t, time.Duration(0), HandoffConfig{}.QueueBroadcastInterval())
}
