package configuration

import (
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

type ApplicationConfiguration struct {
	// Generated if empty.
	AgentId string
	// Defaults to the machine hostname.
	Hostname string
}

type ResourcesConfiguration struct {
	Cpus   resource.Quantity
	Memory resource.Quantity
}

type ConnectionConfiguration struct {
	ConnectAttempts uint          `validate:"gte=1"`
	ConnectDelay    time.Duration `validate:"gte=0"`
	DialTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
}

type AgentConfiguration struct {
	LogLevel    string `validate:"required"`
	MetricsPort uint16
	Application ApplicationConfiguration
	Resources   ResourcesConfiguration
	Connection  ConnectionConfiguration
	// How often terminal statuses the master has not acknowledged are sent again.
	StatusResendInterval time.Duration `validate:"gt=0"`
}
