// Package config provides loading and environment overlay for logkv
// configuration. Default() is the baseline; Load reads a JSON or YAML file
// over it and FromEnv applies LOGKV_* variables on top.
//
// Example:
//
//	cfg, err := config.Load("/etc/logkv.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
package config
