package main

import (
	"fmt"
	"io"
	"log/slog"

	"fip/internal/config"
	"fip/internal/pipeline"
)

// session bundles what a command needs to talk to one repository.
type session struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	logFile  io.Closer
}

// openSession resolves the root, loads configuration and builds the pipeline.
func openSession(opts ...pipeline.Option) (*session, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve repository root: %w", err)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	logger, closer := newLogger(root, cfg)

	p, err := pipeline.New(root, cfg, logger, opts...)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	return &session{root: root, cfg: cfg, logger: logger, pipeline: p, logFile: closer}, nil
}

func (s *session) Close() {
	if err := s.pipeline.Close(); err != nil {
		s.logger.Warn("Failed to close pipeline", "error", err.Error())
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
}
