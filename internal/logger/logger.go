// Package logger builds the zap logger shared by the storefront binaries.
package logger

import "go.uber.org/zap"

// New returns a production JSON logger tagged with the service name.
func New(service string) (*zap.Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", service)), nil
}

// Must is New for main packages.
func Must(service string) *zap.Logger {
	l, err := New(service)
	if err != nil {
		panic(err)
	}
	return l
}
