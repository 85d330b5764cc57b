package cli

import (
	"fmt"
	"text/tabwriter"

	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"

	"github.com/hopcli/hop/internal/gate"
	"github.com/hopcli/hop/internal/inventory"
	"github.com/hopcli/hop/internal/publicip"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list running instances as (Env, InstanceId, Name)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			awsCfg, err := a.awsConfig(ctx)
			if err != nil {
				return err
			}
			records, err := inventory.NewEC2(awsec2.NewFromConfig(awsCfg), a.cfg.CallTimeout).List(ctx)
			if err != nil {
				return err
			}
			// Records go to stdout; everything diagnostic stays on stderr so
			// this output remains pipeable.
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Env, r.InstanceID, r.Name)
			}
			return w.Flush()
		},
	}
}

func (a *app) grantCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "grant",
		Aliases: []string{"unlock"},
		Short:   "admit the caller's public IP to the bastion on tcp/22",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			controller, err := a.gateController(cmd)
			if err != nil {
				return err
			}
			return controller.Grant(cmd.Context())
		},
	}
}

func (a *app) revokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "revoke",
		Aliases: []string{"lock"},
		Short:   "remove the caller's public IP from the bastion's tcp/22 rule",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			controller, err := a.gateController(cmd)
			if err != nil {
				return err
			}
			return controller.Revoke(cmd.Context())
		},
	}
}

func (a *app) gateController(cmd *cobra.Command) (*gate.Controller, error) {
	if err := a.cfg.ValidateGate(); err != nil {
		return nil, err
	}
	awsCfg, err := a.awsConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	resolver := &publicip.Client{Timeout: a.cfg.CallTimeout}
	return &gate.Controller{
		Client:  awsec2.NewFromConfig(awsCfg),
		GroupID: a.cfg.SecurityGroupID,
		Lookup:  resolver.Discover,
	}, nil
}
