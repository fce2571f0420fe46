package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/papercomputeco/spyre/pkg/logger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their TOML key so messages match `spyre config`.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			_, err := time.ParseDuration(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			_, err := logger.ParseLevel(fl.Field().String())
			return err == nil
		})

		validate = v
	})
	return validate
}

// Validate checks cfg and names every offending key.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}

	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fieldKey(fe.Namespace()), fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// fieldKey strips the root type name from a validator namespace, turning
// "Config.llm.endpoint" into "llm.endpoint".
func fieldKey(ns string) string {
	_, key, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return key
}
