// Package log provides slog loggers that never print session secrets.
//
// The crawler logs request paths, statuses and cookie counts. Cookies,
// passwords and CSRF tokens can still reach a log line, e.g. through a
// malformed header that is echoed back for diagnosis, so every record
// passes through a SecureHandler before it is written:
//
//   - attributes whose key names a secret (cookie, password,
//     csrfmiddlewaretoken, sessionid, ...) are replaced by MaskValue
//   - string values that look like a credential (bearer/basic
//     authorization, long opaque tokens) are replaced by MaskValue
//   - "name=value" pairs of known secret names embedded in a longer
//     string, such as a Set-Cookie line or a form body, keep their name
//     and lose their value
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("logged in", "cookie", "sessionid=abc") // cookie=***REDACTED***
package log
