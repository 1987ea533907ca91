package logger

import (
	"github.com/rm01-labs/cardmaker/internal/config"

	"go.uber.org/zap"
)

var logger *zap.Logger

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Environment == "production" {
		l, err = zap.NewProduction()
	} else if cfg.Environment == "test" {
		l = zap.NewExample()
	} else {
		l, err = zap.NewDevelopment()
	}

	return l, err
}

func MustNewLogger(cfg *config.Config) *zap.Logger {
	return zap.Must(NewLogger(cfg))
}

func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	var err error
	logger, err = NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func GetLogger() *zap.Logger {
	if logger == nil {
		panic("logger not initialized")
	}

	return logger
}
