// Package producers defines the boundary between the pipeline and the
// analyzers that emit findings.
package producers

import (
	"context"
	"log/slog"

	"fip/internal/finding"
	"fip/internal/secrets"
	"fip/internal/slogutil"
)

// Request describes the files a producer should analyse.
type Request struct {
	// Root is the directory relative paths are resolved against.
	Root string
	// Files limits analysis to these slash-separated relative paths. Nil
	// means the whole tree.
	Files []string
}

// wants reports whether findings for file belong in the response.
func (r Request) wants(file string) bool {
	if r.Files == nil {
		return true
	}
	for _, f := range r.Files {
		if f == file {
			return true
		}
	}
	return false
}

// Producer emits findings. Implementations must not retain or mutate the
// returned findings after Produce returns.
type Producer interface {
	Name() finding.Producer
	Produce(ctx context.Context, req Request) ([]finding.Finding, error)
}

// SecretProducer runs the builtin secret scanner as the security producer.
type SecretProducer struct {
	opts   secrets.Options
	logger *slog.Logger
}

// NewSecretProducer creates a secret producer.
func NewSecretProducer(opts secrets.Options, logger *slog.Logger) *SecretProducer {
	return &SecretProducer{opts: opts, logger: slogutil.OrDiscard(logger)}
}

// Name implements Producer.
func (p *SecretProducer) Name() finding.Producer {
	return finding.ProducerSecurity
}

// Produce implements Producer.
func (p *SecretProducer) Produce(ctx context.Context, req Request) ([]finding.Finding, error) {
	return secrets.NewScanner(req.Root, p.opts, p.logger).Scan(ctx, req.Files)
}
