// target classifies the positional command-line argument into one of the
// three session shapes hop knows how to open: the bastion itself, a named
// host behind it, or a container of a service running on an ECS cluster.
package target

import (
	"fmt"
	"os/user"
	"strings"
)

// DefaultExecutable is what runs inside a matched container when the caller
// does not name one.
const DefaultExecutable = "/bin/sh"

// BastionAlias is the literal argument addressing the bastion itself. A host
// whose Name tag is literally "bastion" is therefore unreachable by alias.
const BastionAlias = "bastion"

type Kind int

const (
	KindBastion Kind = iota
	KindHost
	KindService
)

// Descriptor is the parsed form of the positional arguments. Exactly one
// Kind is active; the fields that apply to it are set, the rest are empty.
type Descriptor struct {
	Kind Kind

	// KindHost
	User string
	Host string

	// KindService
	Service    string
	Cluster    string
	Executable string
}

var (
	ErrEmptyTarget   = fmt.Errorf("target must not be empty")
	ErrBadServiceRef = fmt.Errorf("service target must look like service#cluster")
	ErrBadHostRef    = fmt.Errorf("host target must look like host or user@host")
	ErrLocalUser     = fmt.Errorf("failed to determine the local user")
)

// Parse classifies args[0]: a '#' selects service#cluster, otherwise an '@'
// selects user@host, otherwise the bastion alias or a bare host. args[1], if
// present, names the executable for service targets and is ignored otherwise.
func Parse(args []string) (Descriptor, error) {
	if len(args) == 0 || args[0] == "" {
		return Descriptor{}, ErrEmptyTarget
	}
	raw := args[0]

	if strings.Contains(raw, "#") {
		service, cluster, _ := strings.Cut(raw, "#")
		if service == "" || cluster == "" || strings.Contains(cluster, "#") {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrBadServiceRef, raw)
		}
		executable := DefaultExecutable
		if len(args) > 1 && args[1] != "" {
			executable = args[1]
		}
		return Descriptor{
			Kind:       KindService,
			Service:    service,
			Cluster:    cluster,
			Executable: executable,
		}, nil
	}

	if strings.Contains(raw, "@") {
		who, host, _ := strings.Cut(raw, "@")
		if who == "" || host == "" || strings.Contains(host, "@") {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrBadHostRef, raw)
		}
		return Descriptor{Kind: KindHost, User: who, Host: host}, nil
	}

	if raw == BastionAlias {
		return Descriptor{Kind: KindBastion}, nil
	}

	who, err := localUser()
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Kind: KindHost, User: who, Host: raw}, nil
}

func localUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLocalUser, err)
	}
	return u.Username, nil
}
