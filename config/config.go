// Package config holds the startup configuration of the renderer.
package config

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file looked up next to the executable.
const FileName = "triangle.toml"

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// ShaderConfig locates the compiled SPIR-V binaries. Vertex and Fragment are relative to Dir.
type ShaderConfig struct {
	Dir      string `toml:"dir"`
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
}

type RendererConfig struct {
	// MeshPath is an optional OBJ file drawn instead of the built-in triangle.
	MeshPath          string   `toml:"mesh_path"`
	FramesInFlight    int      `toml:"frames_in_flight"`
	Validation        bool     `toml:"validation"`
	PipelineCachePath string   `toml:"pipeline_cache_path"`
	StatsInterval     Duration `toml:"stats_interval"`
}

// Duration is a time.Duration written in TOML as a string such as "5s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(parsed)
	return nil
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			Title:  "Hello Vulkan!",
		},
		Shaders: ShaderConfig{
			Dir:      "shaders",
			Vertex:   "shader.vert.spv",
			Fragment: "shader.frag.spv",
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			StatsInterval:  Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("both vertex and fragment shaders must be named")
	}
	if c.Renderer.FramesInFlight < 1 {
		return errors.Newf("frames_in_flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.StatsInterval < 0 {
		return errors.Newf("stats_interval must not be negative, got %s", c.Renderer.StatsInterval.Std())
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Resolve makes every relative path in c relative to baseDir.
func (c Config) Resolve(baseDir string) Config {
	c.Shaders.Dir = resolvePath(baseDir, c.Shaders.Dir)
	c.Renderer.MeshPath = resolvePath(baseDir, c.Renderer.MeshPath)
	c.Renderer.PipelineCachePath = resolvePath(baseDir, c.Renderer.PipelineCachePath)
	return c
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// SlogLevel parses Level as one of debug, info, warn or error.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level)))
	if err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "invalid log level %q", l.Level)
	}
	return level, nil
}

// ExecutableDir returns the directory holding the running binary, with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate executable")
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve executable path")
	}
	return filepath.Dir(exe), nil
}
