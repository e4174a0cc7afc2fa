package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures zerolog based on the provided logging configuration
func SetupLogging(cfg *LoggingConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer

	if cfg.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}

	for _, path := range cfg.OutputPaths {
		if path == "stdout" {
			writers = append(writers, os.Stdout)
		} else if path == "stderr" {
			// Already added
			continue
		} else if path != cfg.File { // Don't add the file twice
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				return err
			}
			writers = append(writers, file)
		}
	}

	var output io.Writer
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	} else {
		output = writers[0]
	}

	log.Logger = zerolog.New(output).With().Timestamp().Str("service", "mirage").Logger()

	if cfg.EnableTrace {
		log.Logger = log.With().Caller().Logger()
	}

	log.Info().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Strs("output_paths", cfg.OutputPaths).
		Str("file", cfg.File).
		Msg("Logging initialized")

	return nil
}
