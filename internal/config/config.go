// config is the single boundary between the process environment and the rest
// of hop. Every other package receives a Config constructed here once, at
// startup, and never reads the environment itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var (
	ErrBastionNotConfigured = fmt.Errorf(
		"neither a bastion address nor a bastion tag is configured",
	)
	ErrNoSecurityGroup = fmt.Errorf("no bastion security group is configured")
)

// Config holds everything hop consumes from its environment. All values are
// read from HOP_* environment variables.
type Config struct {
	// Bastion reachability: a static address wins; otherwise the single
	// running instance whose Name tag equals BastionTag is looked up.
	BastionAddress string `envconfig:"BASTION_ADDRESS"`
	BastionTag     string `envconfig:"BASTION_TAG"`

	// Login user on the bastion (hop 1).
	BastionUser string `envconfig:"BASTION_USER" default:"ec2-user"`

	// Login user on instances resolved from service#cluster targets (hop 2).
	RemoteUser string `envconfig:"REMOTE_USER" default:"ec2-user"`

	// Private key presented to the bastion. Onward hops authenticate via the
	// forwarded agent, not a second key file.
	KeyPath string `envconfig:"KEY_PATH"`

	// Security group carrying the tcp/22 ingress rule managed by grant/revoke.
	SecurityGroupID string `envconfig:"SECURITY_GROUP"`

	// AWS shared-config profile. Empty means the SDK default chain.
	Profile string `envconfig:"AWS_PROFILE"`

	// Upper bound on each individual cloud or IP-discovery call.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"10s"`

	Debug bool `envconfig:"DEBUG"`
}

// Load reads the HOP_* environment once and applies defaults. Validation is
// deferred to the command layer since requirements differ per verb.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("hop", &c); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration from environment: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.KeyPath == "" {
		c.KeyPath = "~/.ssh/id_rsa"
	}
	c.KeyPath = expandHome(c.KeyPath)
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
}

// ValidateSession checks the fields every session-opening invocation needs.
func (c *Config) ValidateSession() error {
	if c.BastionAddress == "" && c.BastionTag == "" {
		return ErrBastionNotConfigured
	}
	return nil
}

// ValidateGate checks the fields grant/revoke need.
func (c *Config) ValidateGate() error {
	if c.SecurityGroupID == "" {
		return ErrNoSecurityGroup
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
