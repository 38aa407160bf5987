package main

import (
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/capi"
	"github.com/wippyai/dxcompat/dllsupport"
	"github.com/wippyai/dxcompat/dxc"
	"github.com/wippyai/dxcompat/errors"
	"github.com/wippyai/dxcompat/hostabi"
)

func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid log level "+cfg.LogLevel)
	}

	zc := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// installLogger routes every library package through l.
func installLogger(l *zap.Logger) {
	dllsupport.SetLogger(l.Named("dllsupport"))
	dxc.SetLogger(l.Named("dxc"))
	capi.SetLogger(l.Named("capi"))
	hostabi.SetLogger(l.Named("hostabi"))
}
