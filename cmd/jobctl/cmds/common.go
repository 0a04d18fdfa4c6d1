package cmds

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-go-golems/jobctl/pkg/config"
	"github.com/go-go-golems/jobctl/pkg/jobs"
	"github.com/go-go-golems/jobctl/pkg/logscript"
	"github.com/go-go-golems/jobctl/pkg/stream"
	"github.com/go-go-golems/jobctl/pkg/submit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
	Config     config.File
}

func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("server", "", "Job server base URL (defaults to server in the config, then "+config.DefaultServer+")")
	root.PersistentFlags().String("config", "", "Path to config file (defaults to .jobctl.yaml in the current directory)")
	root.PersistentFlags().Duration("timeout", 0, "Timeout for one submission request (0 uses submit.timeout from the config)")
	root.PersistentFlags().String("log-script", "", "JavaScript file that filters or rewrites stream log lines")
}

// getRootOptions loads the config file and applies flag overrides. A missing
// default config file is fine; a missing explicit one is an error.
func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	var file *config.File
	if cfgPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(cwd)
		file, err = config.LoadOptional(cfgPath)
		if err != nil {
			return rootOptions{}, err
		}
	} else {
		cfgPath, err = filepath.Abs(cfgPath)
		if err != nil {
			return rootOptions{}, err
		}
		file, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return rootOptions{}, err
		}
	}
	cfg := file.WithDefaults()

	server, err := flags.GetString("server")
	if err != nil {
		return rootOptions{}, err
	}
	if server != "" {
		cfg.Server = server
	}
	if _, err := url.ParseRequestURI(cfg.Server); err != nil {
		return rootOptions{}, errors.Wrapf(err, "invalid server url %q", cfg.Server)
	}

	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if timeout < 0 {
		return rootOptions{}, errors.New("timeout must not be negative")
	}
	if timeout > 0 {
		cfg.Submit.Timeout = timeout.String()
	}

	script, err := flags.GetString("log-script")
	if err != nil {
		return rootOptions{}, err
	}
	if script != "" {
		cfg.LogScript.Path = script
	}

	return rootOptions{ConfigPath: cfgPath, Config: cfg}, nil
}

func (o rootOptions) submitOptions() submit.Options {
	return submit.Options{
		BaseURL:     o.Config.Server,
		Header:      o.Config.HTTPHeader(),
		Timeout:     o.Config.Submit.TimeoutDuration(),
		SinglePath:  o.Config.Endpoints.Single,
		BatchPath:   o.Config.Endpoints.Batch,
		TargetField: o.Config.Fields.Target,
		FileField:   o.Config.Fields.File,
	}
}

func (o rootOptions) streamOptions() (stream.Options, error) {
	base, err := url.Parse(o.Config.Server)
	if err != nil {
		return stream.Options{}, errors.Wrapf(err, "parse server url %q", o.Config.Server)
	}

	client := &http.Client{}
	if ct := o.Config.Stream.ConnectTimeoutDuration(); ct > 0 {
		// Only dialing and the response headers are bounded; the body is
		// read for as long as the stream lives.
		client.Transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: ct}).DialContext,
			TLSHandshakeTimeout:   ct,
			ResponseHeaderTimeout: ct,
		}
	}

	return stream.Options{
		URL:           base.JoinPath(o.Config.Endpoints.Stream).String(),
		Client:        client,
		Header:        o.Config.HTTPHeader(),
		Retry:         o.Config.Stream.RetryDuration(),
		MaxReconnects: o.Config.Stream.MaxReconnects,
	}, nil
}

// newRouter builds a router writing to sinks, with the configured log
// script as line filter. The returned close func runs the script's shutdown
// hook.
func (o rootOptions) newRouter(sinks jobs.Sinks) (*jobs.Router, func(), error) {
	router := jobs.NewRouter(sinks)
	if o.Config.LogScript.Path == "" {
		return router, func() {}, nil
	}
	script, err := logscript.LoadFile(o.Config.LogScript.Path, logscript.Options{
		HookTimeout: o.Config.LogScript.HookTimeoutDuration(),
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load log script %s", o.Config.LogScript.Path)
	}
	router.Filter = script
	return router, func() { _ = script.Close() }, nil
}
