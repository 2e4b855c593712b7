package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder writes one flat JSON object per entry with the keys the
// Scalyr parser expects (timestamp, level, message, file, line).
// Fields added through logger.With accumulate in the embedded map encoder.
type ScalyrEncoder struct {
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// EncodeEntry encodes a log entry
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	fieldEnc := zapcore.NewMapObjectEncoder()
	for k, v := range e.MapObjectEncoder.Fields {
		fieldEnc.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(fieldEnc)
	}

	logObj := make(map[string]interface{}, len(fieldEnc.Fields)+8)
	for k, v := range fieldEnc.Fields {
		switch val := v.(type) {
		case time.Duration:
			logObj[k] = val.String()
		case time.Time:
			logObj[k] = val.Format(time.RFC3339Nano)
		default:
			logObj[k] = val
		}
	}

	logObj[keyOr(e.config.TimeKey, "timestamp")] = entry.Time.Format(time.RFC3339Nano)
	logObj[keyOr(e.config.LevelKey, "level")] = entry.Level.String()
	logObj[keyOr(e.config.MessageKey, "message")] = entry.Message
	if entry.LoggerName != "" {
		logObj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
		logObj["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	data, err := json.Marshal(logObj)
	if err != nil {
		return nil, err
	}
	buf := bufferPool.Get()
	buf.AppendBytes(data)
	buf.AppendString(zapcore.DefaultLineEnding)
	return buf, nil
}

// Clone creates a copy of the encoder including accumulated context
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	ctx := zapcore.NewMapObjectEncoder()
	for k, v := range e.MapObjectEncoder.Fields {
		ctx.Fields[k] = v
	}
	return &ScalyrEncoder{
		MapObjectEncoder: ctx,
		config:           e.config,
	}
}

func keyOr(key, fallback string) string {
	if key == "" {
		return fallback
	}
	return key
}
