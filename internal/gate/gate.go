// gate manages time-bounded admission of the caller's IP to the bastion:
// grant punches a tcp/22 hole for <public ip>/32 in the bastion's security
// group, revoke closes it again. The group is the sole source of truth;
// current membership is never read back before mutating.
package gate

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
)

const sshPort = 22

// SecurityGroupAPI is the slice of the EC2 client the controller consumes.
type SecurityGroupAPI interface {
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error)
}

var (
	ErrGrant  = fmt.Errorf("failed to add bastion ingress rule")
	ErrRevoke = fmt.Errorf("failed to remove bastion ingress rule")
)

// Controller issues add/remove requests for the caller's /32 rule. Failures
// surface verbatim and are never retried: a stale hole left open or a caller
// locked out must be visible, not papered over.
type Controller struct {
	Client  SecurityGroupAPI
	GroupID string

	// Lookup discovers the caller's public IPv4 address.
	Lookup func(ctx context.Context) (string, error)
}

func (c *Controller) Grant(ctx context.Context) error {
	cidr, err := c.callerCIDR(ctx)
	if err != nil {
		return err
	}
	_, err = c.Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(c.GroupID),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(sshPort),
		ToPort:     aws.Int32(sshPort),
		CidrIp:     aws.String(cidr),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGrant, err)
	}
	clog.FromContext(ctx).Info("authorized SSH ingress", "group", c.GroupID, "cidr", cidr)
	return nil
}

func (c *Controller) Revoke(ctx context.Context) error {
	cidr, err := c.callerCIDR(ctx)
	if err != nil {
		return err
	}
	_, err = c.Client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
		GroupId:    aws.String(c.GroupID),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(sshPort),
		ToPort:     aws.Int32(sshPort),
		CidrIp:     aws.String(cidr),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRevoke, err)
	}
	clog.FromContext(ctx).Info("revoked SSH ingress", "group", c.GroupID, "cidr", cidr)
	return nil
}

func (c *Controller) callerCIDR(ctx context.Context) (string, error) {
	ip, err := c.Lookup(ctx)
	if err != nil {
		return "", err
	}
	return ip + "/32", nil
}
