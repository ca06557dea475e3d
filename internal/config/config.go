// Package config handles configuration loading for sitepipe.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/sitepipe/internal/glob"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// ProjectFileName is the per-project configuration file.
const ProjectFileName = ".sitepipe.yaml"

// Config holds all configuration for sitepipe. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	// Mode is "development" or "production".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Root is the project directory all paths are relative to.
	Root string `mapstructure:"root" yaml:"root"`
	// StateDir holds logs and the build history database.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
	// Debug enables the debug log file.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Paths      PathsConfig      `mapstructure:"paths" yaml:"paths"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Transforms TransformsConfig `mapstructure:"transforms" yaml:"transforms"`
	Tools      ToolsConfig      `mapstructure:"tools" yaml:"tools"`
	Publish    PublishConfig    `mapstructure:"publish" yaml:"publish"`
}

// Sources lists the glob patterns for each resource class.
type Sources struct {
	HTML        []string `mapstructure:"html" yaml:"html"`
	JS          []string `mapstructure:"js" yaml:"js"`
	JSJq        []string `mapstructure:"js_jq" yaml:"js_jq"`
	JSPlugins   []string `mapstructure:"js_plugins" yaml:"js_plugins"`
	CSS         []string `mapstructure:"css" yaml:"css"`
	Img         []string `mapstructure:"img" yaml:"img"`
	ImgWebP     []string `mapstructure:"img_webp" yaml:"img_webp"`
	BlockSVG    []string `mapstructure:"block_svg" yaml:"block_svg"`
	Fonts       []string `mapstructure:"fonts" yaml:"fonts"`
	Favicon     []string `mapstructure:"favicon" yaml:"favicon"`
	SVG         []string `mapstructure:"svg" yaml:"svg"`
	WebManifest []string `mapstructure:"webmanifest" yaml:"webmanifest"`
	Webpack     []string `mapstructure:"webpack" yaml:"webpack"`
}

// WatchPaths lists the patterns that retrigger a class when they change.
// Classes without an entry here are watched through their source patterns.
type WatchPaths struct {
	HTML    []string `mapstructure:"html" yaml:"html"`
	JS      []string `mapstructure:"js" yaml:"js"`
	Webpack []string `mapstructure:"webpack" yaml:"webpack"`
	CSS     []string `mapstructure:"css" yaml:"css"`
	Fonts   []string `mapstructure:"fonts" yaml:"fonts"`
}

// Destinations maps each resource class to its output directory.
type Destinations struct {
	HTML        string `mapstructure:"html" yaml:"html"`
	JS          string `mapstructure:"js" yaml:"js"`
	JSPlugins   string `mapstructure:"js_plugins" yaml:"js_plugins"`
	CSS         string `mapstructure:"css" yaml:"css"`
	Img         string `mapstructure:"img" yaml:"img"`
	Fonts       string `mapstructure:"fonts" yaml:"fonts"`
	Favicon     string `mapstructure:"favicon" yaml:"favicon"`
	SVGSprite   string `mapstructure:"svg_sprite" yaml:"svg_sprite"`
	WebManifest string `mapstructure:"webmanifest" yaml:"webmanifest"`
}

// PathsConfig is the source-tree to destination-tree contract.
type PathsConfig struct {
	// SrcRoot is the directory holding all sources; it must exist.
	SrcRoot string `mapstructure:"src_root" yaml:"src_root"`
	// BuildRoot is the directory holding all outputs.
	BuildRoot string       `mapstructure:"build_root" yaml:"build_root"`
	Src       Sources      `mapstructure:"src" yaml:"src"`
	Watch     WatchPaths   `mapstructure:"watch" yaml:"watch"`
	Build     Destinations `mapstructure:"build" yaml:"build"`
	// Clean lists paths removed by the clean task.
	Clean []string `mapstructure:"clean" yaml:"clean"`
}

// ServerConfig holds live-reload server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Open bool   `mapstructure:"open" yaml:"open"`
	CORS bool   `mapstructure:"cors" yaml:"cors"`
}

// TransformsConfig holds tuning for the external transforms.
type TransformsConfig struct {
	// OptimizationLevel is the optipng -o level.
	OptimizationLevel int `mapstructure:"optimization_level" yaml:"optimization_level"`
	// WebPQuality is the cwebp -q value.
	WebPQuality int `mapstructure:"webp_quality" yaml:"webp_quality"`
	// Targets are browser engines for prefixing and syntax lowering,
	// e.g. "chrome58", "safari11".
	Targets []string `mapstructure:"targets" yaml:"targets"`
	// IncludePrefix is the marker used by HTML includes.
	IncludePrefix string `mapstructure:"include_prefix" yaml:"include_prefix"`
}

// ToolsConfig names the external executables used by transforms.
type ToolsConfig struct {
	Sass     string `mapstructure:"sass" yaml:"sass"`
	OptiPNG  string `mapstructure:"optipng" yaml:"optipng"`
	JPEGTran string `mapstructure:"jpegtran" yaml:"jpegtran"`
	CWebP    string `mapstructure:"cwebp" yaml:"cwebp"`
	// Opener launches a browser; empty picks xdg-open or open.
	Opener string `mapstructure:"opener" yaml:"opener"`
}

// PublishConfig holds S3 upload settings for `sitepipe publish`.
type PublishConfig struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Region       string `mapstructure:"region" yaml:"region"`
	CacheControl string `mapstructure:"cache_control" yaml:"cache_control"`
}

// Load loads configuration for the project containing dir.
// Precedence (highest to lowest):
// 1. Environment variables (SITEPIPE_*, NODE_ENV for the mode)
// 2. Project config (.sitepipe.yaml in dir or a parent)
// 3. User config (~/.config/sitepipe/config.yaml)
// 4. Built-in defaults
func Load(dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	root := dir
	if projectConfig := findProjectConfig(dir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Key: "file", Reason: "cannot read " + projectConfig, Err: err}
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
		root = filepath.Dir(projectConfig)
	}
	v.SetDefault("root", ".")

	bindEnv(v)

	return unmarshal(v, root)
}

// LoadFromPath loads configuration from a specific file (for testing and
// --config). Relative roots are resolved against the file's directory.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.SetDefault("root", ".")

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Key: "file", Reason: "cannot read " + path, Err: err}
	}

	bindEnv(v)

	return unmarshal(v, filepath.Dir(path))
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SITEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// SITEPIPE_MODE wins over the conventional NODE_ENV.
	v.BindEnv("mode", "SITEPIPE_MODE", "NODE_ENV")
}

// unmarshal decodes v and resolves a relative root against base.
func unmarshal(v *viper.Viper, base string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Mode = string(models.ParseMode(cfg.Mode))

	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(base, cfg.Root)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &ConfigurationError{Key: "root", Reason: "cannot resolve", Err: err}
	}
	cfg.Root = root
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file for dir, if one exists.
func GetProjectConfigPath(dir string) string {
	return findProjectConfig(dir)
}

// setDefaults configures default values. The path defaults are the
// source and build layout every sitepipe project starts from.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(models.ModeDevelopment))
	v.SetDefault("state_dir", ".sitepipe")
	v.SetDefault("debug", false)

	v.SetDefault("paths.src_root", "src")
	v.SetDefault("paths.build_root", "build")

	v.SetDefault("paths.src.html", []string{"src/**/*.html", "!src/_blocks/**/*.html"})
	v.SetDefault("paths.src.js", []string{"src/_blocks/**/*.js", "!src/_blocks/**/jq-*.js"})
	v.SetDefault("paths.src.js_jq", []string{"src/_blocks/**/jq-*.js"})
	v.SetDefault("paths.src.js_plugins", []string{"src/plugins/**/*"})
	v.SetDefault("paths.src.css", []string{"src/scss/main.scss"})
	v.SetDefault("paths.src.img", []string{"src/img/_blocks/**/*.{png,jpg,gif,webp}"})
	v.SetDefault("paths.src.img_webp", []string{"src/img/_blocks/**/*.{png,jpg}"})
	v.SetDefault("paths.src.block_svg", []string{"src/img/_blocks/**/*.svg"})
	v.SetDefault("paths.src.fonts", []string{"src/fonts/**/*.*", "!src/fonts/**/*.scss"})
	v.SetDefault("paths.src.favicon", []string{"src/img/favicon/*"})
	v.SetDefault("paths.src.svg", []string{"src/img/svg/*.svg"})
	v.SetDefault("paths.src.webmanifest", []string{"src/manifest-*.json"})
	v.SetDefault("paths.src.webpack", []string{"src/webpack/main-webpack.js"})

	v.SetDefault("paths.watch.html", []string{"src/**/*.html"})
	v.SetDefault("paths.watch.js", []string{"src/**/*.js", "!src/webpack/**/*"})
	v.SetDefault("paths.watch.webpack", []string{"src/webpack/**/*"})
	v.SetDefault("paths.watch.css", []string{"src/**/*.scss"})
	v.SetDefault("paths.watch.fonts", []string{"src/fonts/**/*.*"})

	v.SetDefault("paths.build.html", "build/")
	v.SetDefault("paths.build.js", "build/js/")
	v.SetDefault("paths.build.js_plugins", "build/plugins/")
	v.SetDefault("paths.build.css", "build/css/")
	v.SetDefault("paths.build.img", "build/img/")
	v.SetDefault("paths.build.fonts", "build/fonts/")
	v.SetDefault("paths.build.favicon", "build/img/favicon/")
	v.SetDefault("paths.build.svg_sprite", "build/img/svg")
	v.SetDefault("paths.build.webmanifest", "build/")

	v.SetDefault("paths.clean", []string{"./build", "./someFolder"})

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.open", false)
	v.SetDefault("server.cors", true)

	v.SetDefault("transforms.optimization_level", 3)
	v.SetDefault("transforms.webp_quality", 90)
	v.SetDefault("transforms.targets", []string{"chrome58", "edge16", "firefox57", "safari11", "ios11"})
	v.SetDefault("transforms.include_prefix", "@@")

	v.SetDefault("tools.sass", "sass")
	v.SetDefault("tools.optipng", "optipng")
	v.SetDefault("tools.jpegtran", "jpegtran")
	v.SetDefault("tools.cwebp", "cwebp")
	v.SetDefault("tools.opener", "")

	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.cache_control", "public, max-age=300")
}

// Default returns a Config with default values rooted at root.
func Default(root string) *Config {
	v := viper.New()
	setDefaults(v)
	v.SetDefault("root", ".")
	cfg, err := unmarshal(v, root)
	if err != nil {
		// Defaults always decode; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

// getUserConfigDir returns the XDG config directory for sitepipe.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sitepipe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "sitepipe")
	}
	return filepath.Join(home, ".config", "sitepipe")
}

// findProjectConfig searches for .sitepipe.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	cwd, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// ModeValue returns the parsed environment mode.
func (c *Config) ModeValue() models.Mode {
	return models.ParseMode(c.Mode)
}

// Abs resolves a project-relative path.
func (c *Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// BuildRootAbs returns the absolute destination root.
func (c *Config) BuildRootAbs() string {
	return c.Abs(c.Paths.BuildRoot)
}

// StateDirAbs returns the absolute state directory.
func (c *Config) StateDirAbs() string {
	return c.Abs(c.StateDir)
}

// DebugLogPath returns the debug log location, or "" when debug is off.
func (c *Config) DebugLogPath() string {
	if !c.Debug {
		return ""
	}
	return filepath.Join(c.StateDirAbs(), "logs", "debug.log")
}

// StateDBPath returns the build history database location.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.StateDirAbs(), "state.db")
}

// Validate checks the layout contract. Every failure is a
// *ConfigurationError and must abort the build before any task runs.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Root)
	if err != nil || !info.IsDir() {
		return &ConfigurationError{Key: "root", Reason: fmt.Sprintf("%s is not a directory", c.Root), Err: err}
	}

	if c.Paths.SrcRoot == "" {
		return &ConfigurationError{Key: "paths.src_root", Reason: "must be set"}
	}
	srcRoot := c.Abs(c.Paths.SrcRoot)
	if info, err := os.Stat(srcRoot); err != nil || !info.IsDir() {
		return &ConfigurationError{Key: "paths.src_root", Reason: fmt.Sprintf("source directory %s does not exist", srcRoot), Err: err}
	}

	buildRoot := c.BuildRootAbs()
	if !c.within(buildRoot) || buildRoot == c.Root {
		return &ConfigurationError{Key: "paths.build_root", Reason: fmt.Sprintf("%q must be a subdirectory of the project", c.Paths.BuildRoot)}
	}
	if buildRoot == srcRoot || isParent(buildRoot, srcRoot) {
		return &ConfigurationError{Key: "paths.build_root", Reason: "must not contain the source directory"}
	}

	for key, dest := range c.destinations() {
		if dest == "" {
			return &ConfigurationError{Key: "paths.build." + key, Reason: "must be set"}
		}
		abs := c.Abs(dest)
		if abs != buildRoot && !isParent(buildRoot, abs) {
			return &ConfigurationError{Key: "paths.build." + key, Reason: fmt.Sprintf("%q is outside build root %q", dest, c.Paths.BuildRoot)}
		}
	}

	for key, patterns := range c.patternSets() {
		if err := glob.New(patterns...).Validate(); err != nil {
			return &ConfigurationError{Key: key, Reason: "invalid pattern", Err: err}
		}
	}

	for _, p := range c.Paths.Clean {
		if !c.within(c.Abs(p)) || c.Abs(p) == c.Root {
			return &ConfigurationError{Key: "paths.clean", Reason: fmt.Sprintf("%q is outside the project", p)}
		}
		if c.Abs(p) == srcRoot || isParent(c.Abs(p), srcRoot) {
			return &ConfigurationError{Key: "paths.clean", Reason: fmt.Sprintf("%q would delete sources", p)}
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ConfigurationError{Key: "server.port", Reason: fmt.Sprintf("%d is not a valid port", c.Server.Port)}
	}
	return nil
}

func (c *Config) within(abs string) bool {
	return abs == c.Root || isParent(c.Root, abs)
}

// isParent reports whether child is strictly below parent.
func isParent(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *Config) destinations() map[string]string {
	b := c.Paths.Build
	return map[string]string{
		"html":        b.HTML,
		"js":          b.JS,
		"js_plugins":  b.JSPlugins,
		"css":         b.CSS,
		"img":         b.Img,
		"fonts":       b.Fonts,
		"favicon":     b.Favicon,
		"svg_sprite":  b.SVGSprite,
		"webmanifest": b.WebManifest,
	}
}

func (c *Config) patternSets() map[string][]string {
	s, w := c.Paths.Src, c.Paths.Watch
	return map[string][]string{
		"paths.src.html":        s.HTML,
		"paths.src.js":          s.JS,
		"paths.src.js_jq":       s.JSJq,
		"paths.src.js_plugins":  s.JSPlugins,
		"paths.src.css":         s.CSS,
		"paths.src.img":         s.Img,
		"paths.src.img_webp":    s.ImgWebP,
		"paths.src.block_svg":   s.BlockSVG,
		"paths.src.fonts":       s.Fonts,
		"paths.src.favicon":     s.Favicon,
		"paths.src.svg":         s.SVG,
		"paths.src.webmanifest": s.WebManifest,
		"paths.src.webpack":     s.Webpack,
		"paths.watch.html":      w.HTML,
		"paths.watch.js":        w.JS,
		"paths.watch.webpack":   w.Webpack,
		"paths.watch.css":       w.CSS,
		"paths.watch.fonts":     w.Fonts,
	}
}
