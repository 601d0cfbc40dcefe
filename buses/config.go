package buses

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/w5500/utils"
)

// DefaultBaudRate is the SPI clock used when a config leaves baud_rate unset.
const DefaultBaudRate = 1000000

// DeviceConfig describes one chip on a shareable SPI bus.
type DeviceConfig struct {
	Name       string `json:"name"`
	BusSelect  string `json:"bus_select"`  // e.g. "0" for /dev/spidev0.*
	ChipSelect string `json:"chip_select"` // e.g. "1" for /dev/spidev*.1
	BaudRate   uint   `json:"baud_rate,omitempty"`
	Mode       uint   `json:"mode,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *DeviceConfig) Validate(path string) error {
	if conf.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if conf.BusSelect == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bus_select")
	}
	if conf.ChipSelect == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "chip_select")
	}
	if conf.Mode > 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("mode must be between 0 and 3, got %d", conf.Mode))
	}
	return nil
}

// BaudRateOrDefault returns the configured clock, or DefaultBaudRate when none is set.
func (conf *DeviceConfig) BaudRateOrDefault() uint {
	if conf.BaudRate == 0 {
		return DefaultBaudRate
	}
	return conf.BaudRate
}

func (conf *DeviceConfig) String() string {
	return fmt.Sprintf("%s (SPI%s.%s)", conf.Name, conf.BusSelect, conf.ChipSelect)
}

// DeviceConfigFromAttributes decodes a loosely typed attribute map, e.g. one read from a JSON
// config file, into a DeviceConfig. Unknown keys are rejected.
func DeviceConfigFromAttributes(attributes map[string]interface{}) (*DeviceConfig, error) {
	var conf DeviceConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &conf,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "decoding SPI device attributes")
	}
	return &conf, nil
}
