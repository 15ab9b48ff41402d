package llm

import (
	"context"
	log "log/slog"
	"time"
)

// LoggingProvider records every request through slog.
type LoggingProvider struct {
	inner  Provider
	logger *log.Logger
}

// WithLogging wraps a Provider with request logging. A nil logger uses the
// default one.
func WithLogging(p Provider, logger *log.Logger) Provider {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	attrs := []any{
		"purpose", PurposeFrom(ctx),
		"model", l.inner.ModelID(),
		"latency", time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		l.logger.Warn("LLM request failed", append(attrs, "err", err)...)
		return nil, err
	}

	attrs = append(attrs,
		"served_by", resp.Model,
		"in_tokens", resp.Usage.InputTokens,
		"out_tokens", resp.Usage.OutputTokens,
	)
	l.logger.Info("LLM request", attrs...)
	l.logger.Debug("LLM response", "purpose", PurposeFrom(ctx), "text", resp.Text)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) Unwrap() Provider {
	return l.inner
}
