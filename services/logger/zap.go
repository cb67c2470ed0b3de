package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/ratiba/core"
)

// NewZap builds the local log sink: colored console output when debugging, JSON otherwise.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if conf.Debug {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", conf.AppName), zap.String("version", conf.Build)), nil
}
