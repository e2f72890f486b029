package configuration

import (
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	commonconfig "github.com/armadaproject/largestproduct/internal/common/config"
)

type TaskConfiguration struct {
	Cpus   resource.Quantity
	Memory resource.Quantity
}

type MasterConfiguration struct {
	OfferInterval    time.Duration `validate:"gt=0"`
	RefuseDuration   time.Duration `validate:"gte=0"`
	WriteTimeout     time.Duration `validate:"gt=0"`
	HandshakeTimeout time.Duration `validate:"gt=0"`
}

type RedisPublisherConfiguration struct {
	Enabled bool
	Redis   commonconfig.RedisConfig
}

type PublisherConfiguration struct {
	Redis RedisPublisherConfiguration
}

type Configuration struct {
	LogLevel    string `validate:"required"`
	MetricsPort uint16
	// Length of the windows whose products are compared.
	WindowLength int `validate:"gte=1,lte=20"`
	// Digits per work unit. Zero means 2*windowLength-1.
	UnitLength int `validate:"gte=0"`
	// Accept a unitLength below 2*windowLength-1, such as 20 for a window of 13. Some windows are then never evaluated.
	AllowShortUnits bool
	// Drop the final digit from every unit bound, so the last window of the input is never evaluated.
	TruncateTail bool
	// The digit sequence. Ignored when InputFile is set.
	Input string
	// Path of a file holding the digit sequence. Whitespace is ignored.
	InputFile string
	Task      TaskConfiguration
	Master    MasterConfiguration
	Publisher PublisherConfiguration
}
