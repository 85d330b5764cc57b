// cli wires the command surface: the bare positional target opens a session,
// and the reserved verbs (list, grant, revoke, lock, unlock) dispatch to the
// inventory listing and the access gate. A host literally named after one of
// the verbs is shadowed by it; that collision is inherited behavior.
package cli

import (
	"context"
	"errors"

	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/smithy-go"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/hopcli/hop/internal/config"
	"github.com/hopcli/hop/internal/inventory"
	"github.com/hopcli/hop/internal/session"
	"github.com/hopcli/hop/internal/target"
)

// exitResolutionFailure is returned for any configuration, resolution or
// ambiguity failure. Successful sessions exit with the session's own status.
const exitResolutionFailure = 127

type app struct {
	cfg config.Config

	// exit holds the final session's status once a session ran.
	exit int
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, cfg config.Config) int {
	a := &app{cfg: cfg}
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		report(ctx, err)
		return exitResolutionFailure
	}
	return a.exit
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hop [target] [executable]",
		Short: "open SSH sessions to hosts and containers behind the bastion",
		Long: `hop resolves a terse target into a reachable endpoint and opens an
interactive session to it through the bastion:

  hop                        print this help
  hop bastion                session onto the bastion itself
  hop web-1                  session to the instance named web-1, as you
  hop alice@web-1            session to web-1 as alice
  hop checkout#prod [cmd]    exec into the checkout container on the prod
                             cluster (default command /bin/sh)`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runTarget,
	}
	root.AddCommand(a.listCommand(), a.grantCommand(), a.revokeCommand())
	return root
}

func (a *app) runTarget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 0 {
		return cmd.Help()
	}

	desc, err := target.Parse(args)
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateSession(); err != nil {
		return err
	}
	if err := session.CheckKey(a.cfg.KeyPath); err != nil {
		return err
	}

	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return err
	}
	instances := inventory.NewEC2(awsec2.NewFromConfig(awsCfg), a.cfg.CallTimeout)

	bastionAddr, err := instances.BastionAddress(ctx, a.cfg.BastionAddress, a.cfg.BastionTag)
	if err != nil {
		return err
	}

	spec := session.Spec{
		BastionUser: a.cfg.BastionUser,
		KeyPath:     a.cfg.KeyPath,
		Endpoint:    session.Endpoint{BastionAddress: bastionAddr},
	}

	switch desc.Kind {
	case target.KindBastion:
		// Hop 1 only.
	case target.KindHost:
		addr, err := instances.HostAddress(ctx, desc.Host)
		if err != nil {
			return err
		}
		spec.Endpoint.PrivateAddress = addr
		spec.Endpoint.RemoteUser = desc.User
	case target.KindService:
		services := inventory.NewECS(awsecs.NewFromConfig(awsCfg), instances)
		loc, err := services.Locate(ctx, desc.Service, desc.Cluster)
		if err != nil {
			return err
		}
		spec.Endpoint.PrivateAddress = loc.PrivateAddress
		spec.Endpoint.RemoteUser = a.cfg.RemoteUser
		spec.ImageTag = loc.ImageTag
		spec.Executable = desc.Executable
	}

	code, err := session.Run(ctx, session.Compose(spec))
	if err != nil {
		return err
	}
	a.exit = code
	return nil
}

// report writes the failure to stderr with enough detail to act on. AWS API
// errors additionally get their service error code at debug level.
func report(ctx context.Context, err error) {
	log := clog.FromContext(ctx)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Debug("aws api error", "code", apiErr.ErrorCode(), "fault", apiErr.ErrorFault().String())
	}
	log.Error(err.Error())
}
