// Package log provides structured logging via zerolog: a global Logger
// configured once by Init, plus WithComponent/WithUserID/WithRequestID
// helpers for child loggers carrying request-scoped fields.
package log
