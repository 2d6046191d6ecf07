package client

import (
	"context"
	"errors"
)

type ctxKey string

const appKey ctxKey = "app"

var ErrNoApp = errors.New("приложение не инициализировано")

// WithApp кладет App в контекст команды CLI.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, ErrNoApp
	}
	return app, nil
}
