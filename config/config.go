// Package config resolves client settings from the environment, dotenv files
// and the page origin the client is served from.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TUTOR_API_URL.
const EnvPrefix = "TUTOR"

// Config holds the resolved client settings.
type Config struct {
	Env            string        `mapstructure:"env" validate:"required,oneof=development test staging production"`
	APIURL         string        `mapstructure:"api_url" validate:"required,url"`
	WSURL          string        `mapstructure:"ws_url" validate:"required,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Backoff        string        `mapstructure:"backoff" validate:"oneof=exponential decorrelated"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	Debug          bool          `mapstructure:"debug"`
	KeyringService string        `mapstructure:"keyring_service" validate:"required"`
	TokenFile      string        `mapstructure:"token_file"`
}

// Options controls where Load looks.
type Options struct {
	// Dir holds .env and .env.<env>; empty means the working directory.
	Dir string
	// Env overrides TUTOR_ENV.
	Env string
	// Origin is the URL the client is served from, used when no API URL is
	// configured.
	Origin string
	// APIURL overrides every other API URL source.
	APIURL string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load resolves the configuration. Precedence, highest first: process
// environment, .env.<env>, .env, same-origin defaults, built-in defaults.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", "development")
	v.SetDefault("api_url", "")
	v.SetDefault("ws_url", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("backoff", "exponential")
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("debug", false)
	v.SetDefault("keyring_service", "tutorapi")
	v.SetDefault("token_file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "config: working directory")
		}
		dir = wd
	}

	// .env may name the environment, so it is read before .env.<env>
	if err := applyDotEnv(v, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	env := opts.Env
	if env == "" {
		env = v.GetString("env")
	}
	env = strings.ToLower(env)

	if err := applyDotEnv(v, filepath.Join(dir, ".env."+env)); err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:            env,
		APIURL:         strings.TrimRight(v.GetString("api_url"), "/"),
		WSURL:          strings.TrimRight(v.GetString("ws_url"), "/"),
		Timeout:        v.GetDuration("timeout"),
		MaxRetries:     v.GetInt("max_retries"),
		Backoff:        strings.ToLower(v.GetString("backoff")),
		CacheTTL:       v.GetDuration("cache_ttl"),
		Debug:          v.GetBool("debug"),
		KeyringService: v.GetString("keyring_service"),
		TokenFile:      v.GetString("token_file"),
	}
	if opts.APIURL != "" {
		cfg.APIURL = strings.TrimRight(opts.APIURL, "/")
	}

	if err := cfg.fillSameOrigin(opts.Origin); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDotEnv layers a dotenv file under the process environment. Values are
// registered as defaults so real environment variables still win, and the
// process environment is left untouched.
func applyDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrapf(err, "config: stat %s", path)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", path)
	}

	prefix := EnvPrefix + "_"
	for key, value := range values {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v.SetDefault(strings.ToLower(strings.TrimPrefix(key, prefix)), value)
	}
	return nil
}

// fillSameOrigin derives missing URLs: the API lives at <origin>/api and the
// socket at ws(s)://<host>/ws. Without an API URL the origin is required.
func (c *Config) fillSameOrigin(origin string) error {
	if c.APIURL == "" {
		if origin == "" {
			return nil
		}
		api, _, err := SameOrigin(origin)
		if err != nil {
			return err
		}
		c.APIURL = api
	}
	if c.WSURL == "" {
		_, ws, err := SameOrigin(c.APIURL)
		if err != nil {
			return err
		}
		c.WSURL = ws
	}
	return nil
}

// SameOrigin returns the API and WebSocket URLs served from origin's host.
func SameOrigin(origin string) (apiURL, wsURL string, err error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", "", errors.Wrapf(err, "config: parse origin %q", origin)
	}
	if u.Host == "" {
		return "", "", errors.Errorf("config: origin %q has no host", origin)
	}

	wsScheme := "ws"
	switch u.Scheme {
	case "https":
		wsScheme = "wss"
	case "http":
	default:
		return "", "", errors.Errorf("config: origin %q must be http or https", origin)
	}

	return u.Scheme + "://" + u.Host + "/api", wsScheme + "://" + u.Host + "/ws", nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "config: validate")
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	sort.Strings(problems)
	return errors.Errorf("config: invalid settings: %s", strings.Join(problems, ", "))
}
