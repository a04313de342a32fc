package config

import "testing"

func validConfig() Config {
	return Config{
		App:        AppConfig{Env: "local", Port: 8080},
		Gemini:     GeminiConfig{APIKey: "key"},
		Voximplant: VoximplantConfig{AccountID: "1", APIKey: "k", RuleID: 7},
		Auth:       AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_MinimalConfigPasses(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Gemini.Model == "" || c.Gemini.EmbeddingModel == "" {
		t.Fatalf("expected model defaults to be applied")
	}
	if c.DBConfigured() || c.RedisConfigured() || c.QdrantConfigured() {
		t.Fatalf("optional backends must be off by default")
	}
}

func TestValidate_PartialDBConfigFails(t *testing.T) {
	c := validConfig()
	c.DB.Host = "localhost"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for partially configured DB")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestLoad_ReadsSpeechAndSMSEnv(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("VOXIMPLANT_ACCOUNT_ID", "1")
	t.Setenv("VOXIMPLANT_API_KEY", "k")
	t.Setenv("VOXIMPLANT_RULE_ID", "7")
	t.Setenv("VOXIMPLANT_SMS_SOURCE_NUMBER", "+79990000000")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SALUTE_SPEECH_CREDENTIALS", "creds")
	t.Setenv("SALUTE_SPEECH_SAMPLE_RATE", "16000")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Voximplant.SMSSourceNumber != "+79990000000" {
		t.Fatalf("unexpected sms source number %q", c.Voximplant.SMSSourceNumber)
	}
	if !c.SaluteConfigured() || c.Salute.SampleRate != 16000 {
		t.Fatalf("unexpected salute config %+v", c.Salute)
	}
}

func TestValidate_ProductionRequiresIssuerAndAudience(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without issuer and audience")
	}
}
