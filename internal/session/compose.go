// session composes and hands off the interactive two-hop remote session:
// caller -> bastion -> target, optionally ending inside a container on the
// target. Composing the argv is the externally observable action; nothing
// downstream inspects a return value beyond the exit status.
package session

import (
	"fmt"

	"github.com/kballard/go-shellquote"
)

// detachKeys remaps docker's detach sequence to something nobody types, so
// an interactive container session cannot accidentally background itself.
const detachKeys = "ctrl-q,ctrl-q"

// Endpoint is a fully resolved session target. PrivateAddress is empty when
// the bastion itself is the destination.
type Endpoint struct {
	BastionAddress string
	PrivateAddress string
	RemoteUser     string
}

// Spec carries everything Compose needs. ImageTag and Executable are only
// set for container sessions.
type Spec struct {
	BastionUser string
	KeyPath     string
	Endpoint    Endpoint
	ImageTag    string
	Executable  string
}

// Compose builds the exact ssh argv for the session. Hop 1 always carries
// agent forwarding, a forced PTY and the configured key; onward hops
// authenticate through the forwarded agent, never a second key file.
func Compose(s Spec) []string {
	argv := []string{
		"ssh", "-A", "-t",
		"-i", s.KeyPath,
		s.BastionUser + "@" + s.Endpoint.BastionAddress,
	}
	if s.Endpoint.PrivateAddress == "" {
		return argv
	}

	hop := []string{
		"ssh", "-A", "-t",
		s.Endpoint.RemoteUser + "@" + s.Endpoint.PrivateAddress,
	}
	if s.ImageTag != "" {
		hop = append(hop, containerExec(s.ImageTag, s.Executable))
	}

	// The onward hop is a single remote-command argument; quoting it here
	// keeps the bastion's shell from splitting it apart.
	return append(argv, shellquote.Join(hop...))
}

// containerExec is the command the target host runs: find the first live
// container whose name contains the image tag, then exec into it. The grep
// key must stay in lockstep with inventory.ImageTag's derivation.
func containerExec(imageTag, executable string) string {
	return fmt.Sprintf(
		"docker exec -ti --detach-keys %s $(docker ps --format {{.Names}} | grep %s | head -n 1) %s",
		detachKeys, imageTag, executable,
	)
}
