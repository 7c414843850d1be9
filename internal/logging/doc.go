// Package logging provides leveled logging for the asset catalog service.
//
// The log level is controlled by the LOG_LEVEL environment variable
// (debug, info, warn, error) with DEBUG=true as a shortcut for debug level.
// Output goes through the standard library logger so timestamps and
// destinations follow normal log configuration.
package logging
