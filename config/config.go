// Package config handles esbean.toml generator configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/codegen"
)

// FileName is the name of the configuration file.
const FileName = "esbean.toml"

// Config represents an esbean.toml file.
type Config struct {
	// WorkDir is where the generated package is written, relative to Dir.
	WorkDir string `toml:"work-dir"`
	// Package is the name of the generated package.
	Package string `toml:"package"`
	// WrapRoot is searched for EcmaWrap companions after the class's own
	// package. BeanInfo companions are only looked up beside the class.
	WrapRoot  string `toml:"wrap-root"`
	CacheSize int    `toml:"cache-size"`
	LogLevel  string `toml:"log-level"`

	// Patterns are the go/packages patterns loaded to find classes.
	Patterns []string `toml:"patterns"`
	// Types are the qualified names of the classes to wrap. When empty,
	// every exported class of the loaded packages is wrapped.
	Types []string `toml:"types"`

	// Dir is the directory containing the esbean.toml file (set at load time).
	Dir string `toml:"-"`
}

// Default returns the configuration used without an esbean.toml, rooted
// at dir.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.Package == "" {
		c.Package = codegen.DefaultPackage
	}
	if c.WrapRoot == "" {
		c.WrapRoot = beaninfo.DefaultWrapRoot
	}
	if c.CacheSize <= 0 {
		c.CacheSize = beaninfo.DefaultCacheSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.Patterns) == 0 {
		c.Patterns = []string{"./..."}
	}
}

// Load parses the esbean.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undec[0].String())
	}
	if _, err := logrus.ParseLevel(levelOrDefault(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find an esbean.toml file, then
// loads it. Without one, it returns the defaults rooted at startDir.
func FindAndLoad(startDir string) (*Config, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for dir := start; ; {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(start), nil
		}
		dir = parent
	}
}

func levelOrDefault(l string) string {
	if l == "" {
		return "info"
	}
	return l
}

// WorkPath is the absolute work directory.
func (c *Config) WorkPath() string {
	if filepath.IsAbs(c.WorkDir) {
		return c.WorkDir
	}
	return filepath.Join(c.Dir, c.WorkDir)
}

// Logger returns a logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(levelOrDefault(c.LogLevel))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// IntrospectorOptions are the beaninfo options the configuration implies.
func (c *Config) IntrospectorOptions(log logrus.FieldLogger) []beaninfo.IntrospectorOption {
	return []beaninfo.IntrospectorOption{
		beaninfo.WithCacheSize(c.CacheSize),
		beaninfo.WithWrapRoot(c.WrapRoot),
		beaninfo.WithLogger(log),
	}
}

// GeneratorOptions are the codegen options the configuration implies.
func (c *Config) GeneratorOptions(log logrus.FieldLogger) []codegen.GeneratorOption {
	return []codegen.GeneratorOption{
		codegen.WithPackage(c.Package),
		codegen.WithGeneratorLogger(log),
	}
}
