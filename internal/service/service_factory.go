package service

import (
	"sync"

	"go.uber.org/zap"
)

// ServiceFactory builds services lazily from one set of dependencies.
type ServiceFactory struct {
	deps   Dependencies
	logger *zap.Logger

	once        sync.Once
	authService *AuthService
	authErr     error
}

func NewServiceFactory(deps Dependencies, logger *zap.Logger) *ServiceFactory {
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &ServiceFactory{
		deps:   deps,
		logger: logger,
	}
}

// AuthService returns the shared auth service instance.
func (f *ServiceFactory) AuthService() (*AuthService, error) {
	f.once.Do(func() {
		f.authService, f.authErr = NewAuthService(f.deps)
		if f.authErr == nil {
			f.logger.Info("Auth service initialized",
				zap.Duration("otp_ttl", f.deps.Settings.OTPTTL),
				zap.Bool("dev_otp", f.deps.DevCache.Enabled()))
		}
	})
	return f.authService, f.authErr
}
