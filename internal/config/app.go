package config

import "fmt"

// AppConfig is everything the lobby server reads from the environment.
type AppConfig struct {
	Log    LogConfig
	Server ServerConfig
}

func LoadApp() (AppConfig, error) {
	var (
		app AppConfig
		err error
	)
	if app.Log, err = LoadLog(); err != nil {
		return app, fmt.Errorf("log config: %w", err)
	}
	if app.Server, err = LoadServer(); err != nil {
		return app, fmt.Errorf("server config: %w", err)
	}
	return app, nil
}
