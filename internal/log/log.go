package log

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var std = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyMsg:   "action",
			logrus.FieldKeyLevel: "level",
		},
	})
	return l
}

// SetOutput redirects every entry, e.g. to a file sink or a test buffer.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// Writer returns the current sink.
func Writer() io.Writer { return std.Out }

func SetDebug(on bool) {
	if on {
		std.SetLevel(logrus.DebugLevel)
		return
	}
	std.SetLevel(logrus.InfoLevel)
}

func entry(c *fiber.Ctx, err error, fields map[string]any) *logrus.Entry {
	e := logrus.NewEntry(std)
	if c != nil {
		e = e.WithFields(logrus.Fields{
			"ip":     c.IP(),
			"method": c.Method(),
			"path":   c.Path(),
			"status": c.Response().StatusCode(),
		})
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			e = e.WithField("req_id", rid)
		}
		if uid, ok := c.Locals("uid").(int64); ok && uid != 0 {
			e = e.WithField("user_id", uid)
		}
	}
	if err != nil {
		e = e.WithField("err", err.Error())
	}
	if len(fields) > 0 {
		e = e.WithField("fields", fields)
	}
	return e
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, nil, fields).WithField("kind", "info").Info(action)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, nil, fields).WithField("kind", "audit").Info(action)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, nil, fields).WithField("kind", "security").Warn(action)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	entry(c, err, fields).Error(action)
}

// Event logs outside of a request, e.g. from the client library.
func Event(action string, fields map[string]any) {
	entry(nil, nil, fields).Info(action)
}

func Debug(action string, fields map[string]any) {
	entry(nil, nil, fields).Debug(action)
}

func Fail(action string, err error, fields map[string]any) {
	entry(nil, err, fields).Warn(action)
}
