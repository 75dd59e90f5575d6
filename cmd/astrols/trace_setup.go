package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"astrols/internal/config"
	"astrols/internal/trace"
)

// setupTracing builds the tracer from the trace flags, falling back to the
// project configuration for flags the user did not set. The tracer is
// attached to the command context.
func setupTracing(cmd *cobra.Command, cfg *config.Config) (trace.Tracer, func(), error) {
	flags := cmd.Root().PersistentFlags()

	traceOutput, err := flags.GetString("trace")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	tc := cfg.TraceConfig()
	if levelStr != "" {
		if tc.Level, err = trace.ParseLevel(levelStr); err != nil {
			return nil, nil, fmt.Errorf("invalid trace level: %w", err)
		}
	}
	if traceOutput != "" {
		tc.OutputPath = traceOutput
	}
	if flags.Changed("trace-mode") {
		if tc.Mode, err = trace.ParseMode(modeStr); err != nil {
			return nil, nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}
	tc.RingSize = ringSize
	tc.Heartbeat = heartbeatInterval

	// уровень off без файла: трассировка не нужна
	if tc.Level == trace.LevelOff && tc.OutputPath == "" {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return trace.Nop, func() {}, nil
	}
	if tc.Level == trace.LevelOff {
		tc.Level = trace.LevelPhase
	}
	if tc.OutputPath == "" {
		tc.OutputPath = "-"
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// loadProject reads the configuration from the --config directory.
func loadProject(cmd *cobra.Command) (*config.Config, error) {
	dir, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
