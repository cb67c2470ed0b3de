package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

// RollbarLogger reports to rollbar and writes every entry to a local zap sink.
type RollbarLogger struct {
	sink  *zap.SugaredLogger
	local bool // skip rollbar
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(sink *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{sink: sink.Sugar()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes the local sink and waits for pending rollbar reports.
func (l RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.sink.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.Principal
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, fields []interface{}) {
	var usrSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.Principal:
			// only set one user
			if !usrSet {
				if !l.local {
					rollbar.SetPerson(a.UserID, a.Email, a.Email)
				}
				fields = append(fields, "user_id", a.UserID)
				usrSet = true
			}
			continue
		case error:
			fields = append(fields, "error", a)
		case map[string]interface{}:
			for k, v := range a {
				fields = append(fields, k, v)
			}
		}
		rbArgs = append(rbArgs, arg)
	}
	if !usrSet && !l.local {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if !l.local {
		rollbar.Debug(rbArgs...)
	}
	l.sink.Debugw(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if !l.local {
		rollbar.Info(rbArgs...)
	}
	l.sink.Infow(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if !l.local {
		rollbar.Warning(rbArgs...)
	}
	l.sink.Warnw(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if !l.local {
		rollbar.Error(rbArgs...)
	}
	l.sink.Errorw(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if !l.local {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.sink.Fatalw(msg, fields...)
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{sink: zap.NewNop().Sugar(), local: true}
}
