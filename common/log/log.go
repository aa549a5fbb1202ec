package log

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"regexp"
	"time"
	"unicode"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
)

const (
	LvlDebug = "DEBUG"
	LvlInfo  = "INFO"
	LvlWarn  = "WARNING"
	LvlErr   = "ERROR"
)

type contextKey string

const requestIdKey contextKey = "requestId"

const RequestIdHeader = "X-Request-Id"

func NewLogger(component string) *Logger {
	return NewLoggerTo(os.Stderr, component)
}

func NewLoggerTo(w io.Writer, component string) *Logger {
	var kitlogger log.Logger
	kitlogger = log.NewJSONLogger(log.NewSyncWriter(w))
	kitlogger = log.With(kitlogger, "ts", log.DefaultTimestampUTC)
	kitlogger = log.With(kitlogger, "component", component)

	return &Logger{
		kitlogger,
	}
}

type Logger struct {
	log.Logger
}

func (l *Logger) Debug(ctx context.Context, message string, keyvals ...interface{}) {
	l.logWithLvl(ctx, LvlDebug, message, keyvals)
}

func (l *Logger) Info(ctx context.Context, message string, keyvals ...interface{}) {
	l.logWithLvl(ctx, LvlInfo, message, keyvals)
}

func (l *Logger) Warn(ctx context.Context, message string, keyvals ...interface{}) {
	l.logWithLvl(ctx, LvlWarn, message, keyvals)
}

func (l *Logger) Err(ctx context.Context, message string, keyvals ...interface{}) {
	l.logWithLvl(ctx, LvlErr, message, keyvals)
}

// Print lets the logger be plugged into gorm with db.SetLogger.
func (l *Logger) Print(v ...interface{}) {
	if len(v) < 3 {
		return
	}

	keyvals := []interface{}{"source", v[1]}
	if v[0] != "sql" || len(v) < 5 {
		keyvals = append(keyvals, "values", fmt.Sprint(v[2:]...))
		l.logWithLvl(context.Background(), LvlDebug, "database message", keyvals)
		return
	}

	if duration, ok := v[2].(time.Duration); ok {
		keyvals = append(keyvals, "duration_ms", fmt.Sprintf("%.2f", float64(duration.Nanoseconds()/1e4)/100.0))
	}
	query, _ := v[3].(string)
	values, _ := v[4].([]interface{})
	keyvals = append(keyvals, "query", interpolate(query, values))
	if len(v) > 5 {
		keyvals = append(keyvals, "rows", v[5])
	}
	l.logWithLvl(context.Background(), LvlDebug, "database query", keyvals)
}

func (l *Logger) logWithLvl(ctx context.Context, lvl string, message string, keyvals []interface{}) {
	if requestId := RequestId(ctx); requestId != "" {
		keyvals = append(keyvals, "request_id", requestId)
	}
	keyvals = append(keyvals, "level", lvl, "msg", message)
	l.Log(keyvals...)
}

var (
	sqlRegexp = regexp.MustCompile(`(\$\d+)|\?`)
)

func interpolate(query string, values []interface{}) string {
	var formattedValues []string
	for _, value := range values {
		formattedValues = append(formattedValues, formatValue(value))
	}

	var sql string
	for index, part := range sqlRegexp.Split(query, -1) {
		sql += part
		if index < len(formattedValues) {
			sql += formattedValues[index]
		}
	}
	return sql
}

func formatValue(value interface{}) string {
	indirectValue := reflect.Indirect(reflect.ValueOf(value))
	if !indirectValue.IsValid() {
		return "NULL"
	}
	value = indirectValue.Interface()

	switch v := value.(type) {
	case time.Time:
		return fmt.Sprintf("'%v'", v.Format(time.RFC3339))
	case []byte:
		if str := string(v); isPrintable(str) {
			return fmt.Sprintf("'%v'", str)
		}
		return "'<binary>'"
	case driver.Valuer:
		if dv, err := v.Value(); err == nil && dv != nil {
			return fmt.Sprintf("'%v'", dv)
		}
		return "NULL"
	}
	return fmt.Sprintf("'%v'", value)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey, requestId)
}

func RequestId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestId, _ := ctx.Value(requestIdKey).(string)
	return requestId
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLoggerMiddleware tags every request with an id (reusing the caller's
// X-Request-Id when present) and logs it once the handler returns.
func (l *Logger) RequestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestId := req.Header.Get(RequestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		ctx := WithRequestId(req.Context(), requestId)
		w.Header().Set(RequestIdHeader, requestId)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, req.WithContext(ctx))

		l.Info(ctx, "http request served",
			"method", req.Method,
			"uri", req.RequestURI,
			"status", recorder.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
