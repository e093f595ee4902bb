package logger

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

// AccessLoggerMiddleware logs every HTTP request through the global logger.
func AccessLoggerMiddleware(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, logrusAccessLogAdapter)
}

// The io.Writer is unused so that requests are logged with logrus fields.
func logrusAccessLogAdapter(_ io.Writer, params handlers.LogFormatterParams) {
	InitLogger()
	request := fmt.Sprintf("%s %s %s", params.Request.Method, params.Request.URL, params.Request.Proto)
	Log.WithFields(logrus.Fields{
		"remote_addr": params.Request.RemoteAddr,
		"request":     request,
		"status":      params.StatusCode,
		"size":        params.Size},
	).Debug("access")
}
