package config

import (
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/forwardclient"
)

// Options holds the process-level settings a Dispatcher is constructed
// with: CORS behavior, the socket timeout applied to forwarded requests,
// worker pool sizing, audit log capacity, and the optional upstream proxy.
type Options struct {
	EnableCORSForAPI          bool                               `yaml:"enable_cors_for_api"`
	EnableCORSForAllResponses bool                               `yaml:"enable_cors_for_all_responses"`
	ManagementAPIPrefix       string                             `yaml:"management_api_prefix"`
	SocketConnectionTimeout   time.Duration                      `yaml:"socket_connection_timeout"`
	SchedulerWorkers          int                                `yaml:"scheduler_workers"`
	AuditLogCapacity          int                                `yaml:"audit_log_capacity"`
	Proxy                     *forwardclient.ProxyConfiguration  `yaml:"proxy"`
}

// Default returns the Options a Dispatcher uses when none are configured.
func Default() Options {
	return Options{
		ManagementAPIPrefix:     "/__admin",
		SocketConnectionTimeout: 30 * time.Second,
		SchedulerWorkers:        8,
		AuditLogCapacity:        1000,
	}
}
