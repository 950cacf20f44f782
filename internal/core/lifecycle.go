package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional lifecycle hooks. LoadModule calls Configure, Provision and
// Validate in that order; App calls Start and Stop.

// Configurable modules decode their section of the "modules" map. Configure
// is skipped when the section is absent, so defaults belong in Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open connections, register secrets
// with the credential store and publish services on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned state. Validate must not have
// side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch background work, such as the HTTP listener or the
// cron loop. Start must not block.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop is called in reverse start order
// and must return once ctx is done.
type Stopper interface {
	Stop(ctx context.Context) error
}
