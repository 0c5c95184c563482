package main

import (
	"chatnow/internal/config"

	"github.com/spf13/pflag"
)

// applyFlags 用命令行参数覆盖环境变量中的配置，只覆盖显式给出的参数。
func applyFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("chatnow", pflag.ContinueOnError)
	port := fs.String("port", cfg.Port, "HTTP listen port (APP_PORT)")
	env := fs.String("env", cfg.Env, "runtime environment: dev or prod (APP_ENV)")
	static := fs.String("static-dir", cfg.StaticDir, "directory with frontend files to serve (STATIC_DIR)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("env") {
		cfg.Env = *env
	}
	if fs.Changed("static-dir") {
		cfg.StaticDir = *static
	}
	return nil
}
