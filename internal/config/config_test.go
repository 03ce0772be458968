package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("COMMIT_TIMEOUT", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.CommitTimeout != 5*time.Second {
		t.Fatalf("CommitTimeout = %v", cfg.CommitTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_BATCH", "25")
	t.Setenv("CHECKOUT_TIMEOUT", "3s")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("NOTIFIER_WORKERS", "-2")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxBatch != 25 {
		t.Fatalf("OutboxBatch = %d", cfg.OutboxBatch)
	}
	if cfg.CheckoutTimeout != 3*time.Second {
		t.Fatalf("CheckoutTimeout = %v", cfg.CheckoutTimeout)
	}
	if cfg.AutoMigrate {
		t.Fatal("AutoMigrate should be false")
	}
	if cfg.NotifierWorkers != 4 {
		t.Fatalf("NotifierWorkers = %d, want default", cfg.NotifierWorkers)
	}
}

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		secret string
		ok     bool
	}{
		{"", false},
		{"dev-secret", false},
		{"short", false},
		{"a-long-random-signing-key-0123", true},
	}
	for _, tt := range tests {
		t.Setenv("JWT_SECRET", tt.secret)
		err := Load().ValidateAPI()
		if tt.ok && err != nil {
			t.Errorf("secret %q: %v", tt.secret, err)
		}
		if !tt.ok && !errors.Is(err, ErrWeakJWTSecret) {
			t.Errorf("secret %q: err = %v", tt.secret, err)
		}
	}
}
