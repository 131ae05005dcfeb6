// Package logger provides structured logging for the Space-Track client.
//
// It wraps zerolog behind a small interface so packages can accept a Logger
// and tests can swap in NewTestLogger or NewNopLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "gate")
//	log.InfoWithFields("Query completed", map[string]interface{}{
//	    "entity": "gp",
//	    "bytes":  2048,
//	})
//
// Console output is colourised; when logging.file is set every line is also
// appended to that file.
package logger
