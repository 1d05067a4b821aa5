package env

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing is returned by the strict lookups when a required key has no value.
var ErrMissing = errors.New("missing required setting")

var source = newSource()

func newSource() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// Load merges key=value pairs from a dotenv style file. Real environment variables win over
// the file. A missing file is not an error.
func Load(path string) error {
	if path == "" {
		return nil
	}
	source.SetConfigFile(path)
	source.SetConfigType("env")
	if err := source.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("couldn't read %s: %w", path, err)
	}
	return nil
}

// Reset drops anything loaded from files; lookups fall back to the process environment only.
func Reset() {
	source = newSource()
}

func lookup(key string) string {
	return source.GetString(key)
}

func StringOrDefault(key, defaultValue string) string {
	envVal := lookup(key)
	if envVal == "" {
		return defaultValue
	}
	return envVal
}

func BoolOrDefault(key string, defaultValue bool) bool {
	envVal := lookup(key)
	if envVal == "" {
		return defaultValue
	}
	r, err := strconv.ParseBool(envVal)
	if err != nil {
		return defaultValue
	}
	return r
}

func IntOrDefault(key string, defaultValue int) int {
	envVal := lookup(key)
	if envVal == "" {
		return defaultValue
	}
	r, err := strconv.Atoi(envVal)
	if err != nil {
		return defaultValue
	}
	return r
}

// DurationOrDefault returns a time.Duration that is determined by using the time.ParseDuration function.
func DurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	envVal := lookup(key)
	if envVal == "" {
		return defaultValue
	}
	r, err := time.ParseDuration(envVal)
	if err != nil {
		return defaultValue
	}
	return r
}

// Required returns the value of key or ErrMissing.
func Required(key string) (string, error) {
	envVal := lookup(key)
	if envVal == "" {
		return "", fmt.Errorf("%s: %w", key, ErrMissing)
	}
	return envVal, nil
}

// Int is the strict form of IntOrDefault: a value that does not parse is an error.
func Int(key string, defaultValue int) (int, error) {
	envVal := lookup(key)
	if envVal == "" {
		return defaultValue, nil
	}
	r, err := strconv.Atoi(envVal)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %q", key, envVal)
	}
	return r, nil
}
