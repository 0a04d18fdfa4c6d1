package config

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".jobctl.yaml"

const (
	DefaultServer      = "http://localhost:5000"
	DefaultSinglePath  = "/web/crash-single"
	DefaultBatchPath   = "/web/crash-multi"
	DefaultStreamPath  = "/stream-logs"
	DefaultTargetField = "target_number"
	DefaultFileField   = "target_file"
)

type File struct {
	Server    string            `yaml:"server,omitempty"`
	Endpoints Endpoints         `yaml:"endpoints,omitempty"`
	Fields    Fields            `yaml:"fields,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Stream    Stream            `yaml:"stream,omitempty"`
	Submit    Submit            `yaml:"submit,omitempty"`
	LogScript LogScript         `yaml:"log_script,omitempty"`
}

type Endpoints struct {
	Single string `yaml:"single,omitempty"`
	Batch  string `yaml:"batch,omitempty"`
	Stream string `yaml:"stream,omitempty"`
}

// Fields are the multipart form field names of the submission endpoints.
type Fields struct {
	Target string `yaml:"target,omitempty"`
	File   string `yaml:"file,omitempty"`
}

type Stream struct {
	Retry          string `yaml:"retry,omitempty"`           // e.g. "3s"
	MaxReconnects  int    `yaml:"max_reconnects,omitempty"`  // 0 = unlimited
	ConnectTimeout string `yaml:"connect_timeout,omitempty"` // dial + headers only
}

type Submit struct {
	Timeout string `yaml:"timeout,omitempty"`
}

type LogScript struct {
	Path        string `yaml:"path,omitempty"`
	HookTimeout string `yaml:"hook_timeout,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

// WithDefaults returns a copy with every empty value filled in.
func (f File) WithDefaults() File {
	setDefault(&f.Server, DefaultServer)
	setDefault(&f.Endpoints.Single, DefaultSinglePath)
	setDefault(&f.Endpoints.Batch, DefaultBatchPath)
	setDefault(&f.Endpoints.Stream, DefaultStreamPath)
	setDefault(&f.Fields.Target, DefaultTargetField)
	setDefault(&f.Fields.File, DefaultFileField)
	return f
}

func (f File) Validate() error {
	for name, v := range map[string]string{
		"stream.retry":            f.Stream.Retry,
		"stream.connect_timeout":  f.Stream.ConnectTimeout,
		"submit.timeout":          f.Submit.Timeout,
		"log_script.hook_timeout": f.LogScript.HookTimeout,
	} {
		if _, err := parseDuration(v); err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
	}
	if f.Stream.MaxReconnects < 0 {
		return errors.New("stream.max_reconnects must not be negative")
	}
	return nil
}

func (f File) HTTPHeader() http.Header {
	h := http.Header{}
	for k, v := range f.Headers {
		h.Set(k, v)
	}
	return h
}

func (s Stream) RetryDuration() time.Duration {
	d, _ := parseDuration(s.Retry)
	return d
}

func (s Stream) ConnectTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.ConnectTimeout)
	return d
}

func (s Submit) TimeoutDuration() time.Duration {
	d, _ := parseDuration(s.Timeout)
	return d
}

func (l LogScript) HookTimeoutDuration() time.Duration {
	d, _ := parseDuration(l.HookTimeout)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Errorf("negative duration %q", s)
	}
	return d, nil
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
