package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/steemit/feedclient/pkg/config"
)

func TestScalyrEncoder(t *testing.T) {
	var buf bytes.Buffer

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:      "timestamp",
		LevelKey:     "level",
		MessageKey:   "message",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(NewScalyrEncoder(encoderConfig), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := zap.New(core).With(zap.String("component", "store"))

	logger.Info("test message",
		zap.String("key", "value"),
		zap.Int64("post_id", 42),
		zap.Bool("liked", true),
		zap.Duration("took", 1500*time.Millisecond),
	)

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if logObj["message"] != "test message" {
		t.Errorf("Expected message 'test message', got: %v", logObj["message"])
	}
	if logObj["key"] != "value" {
		t.Errorf("Expected field 'key'='value', got: %v", logObj["key"])
	}
	if logObj["component"] != "store" {
		t.Errorf("Expected context field 'component'='store', got: %v", logObj["component"])
	}
	if logObj["post_id"] != float64(42) {
		t.Errorf("Expected field 'post_id'=42, got: %v", logObj["post_id"])
	}
	if logObj["liked"] != true {
		t.Errorf("Expected field 'liked'=true, got: %v", logObj["liked"])
	}
	if logObj["took"] != "1.5s" {
		t.Errorf("Expected field 'took'='1.5s', got: %v", logObj["took"])
	}
	if _, ok := logObj["timestamp"]; !ok {
		t.Error("Expected 'timestamp' field in log output")
	}
}

func TestInitLogger(t *testing.T) {
	defer SetLogger(nil)

	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json", config.LoggingConfig{Level: "DEBUG", Format: "json"}},
		{"text", config.LoggingConfig{Level: "WARN", Format: "text"}},
		{"scalyr", config.LoggingConfig{Level: "INFO", Format: "json", ScalyrFormat: true}},
		{"bad level falls back", config.LoggingConfig{Level: "LOUD", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(&tt.cfg); err != nil {
				t.Fatalf("InitLogger() error = %v", err)
			}
			if GetLogger() == nil {
				t.Fatal("GetLogger() returned nil")
			}
		})
	}
}

func TestGetLoggerWithoutInit(t *testing.T) {
	SetLogger(nil)
	if GetLogger() == nil {
		t.Fatal("GetLogger() should never return nil")
	}
	WithComponent("test").Info("does not panic")
}
