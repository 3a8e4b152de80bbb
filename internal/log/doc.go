// Package log contains the Logger used by the entire application. The Logger is a wrapper around zap.SugaredLogger.
// There should be a single instance of the Logger in the application, and it should be injected into any structs that need to log.
// Logs go to stdout unless LOG_PATH names a file; tests use NewNopLogger or wrap an observer core with FromZap.
package log
