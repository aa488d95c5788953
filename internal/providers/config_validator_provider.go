package providers

import (
	"fmt"
	"time"
	"vocarank/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	v.StopOnError = false
	if !v.Validate() {
		return v.Errors
	}

	if cv.conf.Refresh.Enabled {
		if _, err := time.Parse("15:04", cv.conf.Refresh.At); err != nil {
			return fmt.Errorf("refresh.at must be HH:MM: %w", err)
		}
	}
	if cv.conf.Refresh.ProviderRate < 0 {
		return fmt.Errorf("refresh.providerRate must not be negative")
	}
	if cv.conf.Rankings.MaxMaxEntries > 0 && cv.conf.Rankings.DefaultMaxEntries > cv.conf.Rankings.MaxMaxEntries {
		return fmt.Errorf("rankings.defaultMaxEntries exceeds rankings.maxMaxEntries")
	}
	return nil
}
