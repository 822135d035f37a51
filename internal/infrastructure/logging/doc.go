// Package logging wraps log/slog into the daemon's structured logger.
//
// Format (json/text), minimum level and output stream come from the
// logging section of config.yaml; every record carries service and
// version attrs. Domain packages declare their own narrow Logger
// interfaces, which *Logger satisfies through the embedded
// *slog.Logger.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("engine started", "variant", cfg.Transport.Variant)
package logging
