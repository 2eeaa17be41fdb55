// Package logger wraps zap for every device process:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services receive a context, name their logger once at startup and pull it
// back out of the context wherever they log.
package logger
