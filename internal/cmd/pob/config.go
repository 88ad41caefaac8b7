// Package pob implements the pob command: build download, import, storage
// and item fitting against a Path of Building checkout.
package pob

import (
	"time"

	platformcmd "github.com/mephi42/gopob/internal/platform/cmd"
)

// Config holds pob command defaults read from GOPOB_* variables.
type Config struct {
	EngineDir   string        `env:"ENGINE_DIR"   envDefault:"PathOfBuilding"`
	LuaDir      string        `env:"LUA_DIR"`
	Library     string        `env:"LIBRARY"      envDefault:"gopob.db"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
	Chdir       bool          `env:"CHDIR"        envDefault:"true"`
	Verbose     bool          `env:"VERBOSE"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
