package gemini

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		config      *Config
		wantEmbed   string
		wantChat    string
		expectError bool
	}{
		{
			name:        "missing api key",
			env:         map[string]string{"GEMINI_API_KEY": "", "GOOGLE_API_KEY": ""},
			expectError: true,
		},
		{
			name:      "key from environment",
			env:       map[string]string{"GEMINI_API_KEY": "", "GOOGLE_API_KEY": "env-key"},
			wantEmbed: DefaultEmbeddingModel,
			wantChat:  DefaultChatModel,
		},
		{
			name: "explicit config",
			env:  map[string]string{"GEMINI_API_KEY": "", "GOOGLE_API_KEY": ""},
			config: &Config{
				APIKey:         "k",
				EmbeddingModel: "gemini-embedding-001",
				ChatModel:      "gemini-2.5-pro",
				Dimension:      768,
			},
			wantEmbed: "gemini-embedding-001",
			wantChat:  "gemini-2.5-pro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var opts []Option
			if tt.config != nil {
				opts = append(opts, WithConfig(tt.config))
			}
			client, err := New(opts...)
			if tt.expectError {
				if err == nil {
					t.Error("New() expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if client.config.EmbeddingModel != tt.wantEmbed || client.config.ChatModel != tt.wantChat {
				t.Errorf("models = %q/%q, want %q/%q", client.config.EmbeddingModel, client.config.ChatModel, tt.wantEmbed, tt.wantChat)
			}
		})
	}
}

func TestGenerateConfig(t *testing.T) {
	t.Parallel()

	temp := float32(0.2)
	maxTokens := int32(512)
	c := &Client{config: &Config{Temperature: &temp, MaxTokens: &maxTokens}}

	cfg := c.generateConfig("be brief")
	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("SystemInstruction = %+v", cfg.SystemInstruction)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 512 {
		t.Errorf("MaxOutputTokens = %d", cfg.MaxOutputTokens)
	}

	empty := (&Client{config: &Config{}}).generateConfig("")
	if empty.SystemInstruction != nil || empty.Temperature != nil {
		t.Errorf("empty config = %+v", empty)
	}
}
