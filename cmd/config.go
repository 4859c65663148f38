/*
Copyright © 2024 Rémi Ferrand

Contributor(s): Rémi Ferrand <riton.github_at_gmail.com>, 2024

This software is governed by the CeCILL license under French law and
abiding by the rules of distribution of free software.  You can  use,
modify and/ or redistribute the software under the terms of the CeCILL
license as circulated by CEA, CNRS and INRIA at the following URL
"http://www.cecill.info".

As a counterpart to the access to the source code and  rights to copy,
modify and redistribute granted by the license, users are provided only
with a limited warranty  and the software's author,  the holder of the
economic rights,  and the successive licensors  have only  limited
liability.

In this respect, the user's attention is drawn to the risks associated
with loading,  using,  modifying and/or developing or reproducing the
software by the user in light of its specific status of free software,
that may mean  that it is complicated to manipulate,  and  that  also
therefore means  that it is reserved for developers  and  experienced
professionals having in-depth computer knowledge. Users are therefore
encouraged to load and test the software's suitability as regards their
requirements in conditions enabling the security of their systems and/or
data to be ensured and,  more generally, to use and operate it in the
same conditions as regards security.

The fact that you are presently reading this means that you have had
knowledge of the CeCILL license and that you accept its terms.
*/
package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix          = "ENVPAGE"
	defaultEnvironment = "development"
	defaultListenAddr  = ":3000"
)

type serverConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr" validate:"required,listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type pageConfig struct {
	Environment string `mapstructure:"environment" validate:"required"`
}

type config struct {
	Debug  bool         `mapstructure:"debug"`
	Server serverConfig `mapstructure:"server"`
	Page   pageConfig   `mapstructure:"page"`
}

// newViper returns a viper instance wired to the process environment.
//
// Every key carries a default so that Unmarshal picks up environment
// overrides without the viper_bind_struct build tag.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("server.listen_addr", defaultListenAddr)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("page.environment", defaultEnvironment)

	// The environment name is not prefixed: APP_ENV first, NODE_ENV as a fallback.
	// Empty values count as unset.
	_ = v.BindEnv("page.environment", "APP_ENV", "NODE_ENV")

	return v
}

// loadDotEnv populates the process environment from a dotenv file.
// Variables already set are left untouched. A missing file is only an
// error when the path was given explicitly.
func loadDotEnv(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

// readConfigFile merges an optional configuration file into v.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	var cfg config

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := newConfigValidator().Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}

// newConfigValidator returns a validator that also understands listen_addr:
// an optional host (IP literal, bracketed IPv6 included, or RFC 1123
// hostname) and a port in 1-65535.
func newConfigValidator() *validator.Validate {
	cfgValidator := validator.New(validator.WithRequiredStructEnabled())

	_ = cfgValidator.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		host, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil {
			return false
		}

		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return false
		}

		if host == "" || net.ParseIP(host) != nil {
			return true
		}
		return cfgValidator.Var(host, "hostname_rfc1123") == nil
	})

	return cfgValidator
}
