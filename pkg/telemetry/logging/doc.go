// Package logging builds the process slog logger.
//
// The handler redacts PII from string attributes before they are written
// (API keys, bearer tokens, e-mail addresses, SSNs and card numbers) and adds
// the session id and trace id carried by the context.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithSession(ctx, sessionID)
//	slog.InfoContext(ctx, "turn started")  // includes session_id
package logging
