package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"github.com/hopcli/hop/internal/config"
)

const defaultCallTimeout = 10 * time.Second

// EC2 resolves bastion and host-alias targets against the instance inventory.
type EC2 struct {
	client  EC2API
	timeout time.Duration
}

func NewEC2(client EC2API, callTimeout time.Duration) *EC2 {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &EC2{client: client, timeout: callTimeout}
}

// BastionAddress produces the bastion's reachable name. A statically
// configured address is used as-is; otherwise the single running instance
// tagged with the configured name is looked up.
func (e *EC2) BastionAddress(ctx context.Context, static, tag string) (string, error) {
	if static != "" {
		return static, nil
	}
	if tag == "" {
		return "", config.ErrBastionNotConfigured
	}

	instances, err := e.runningByName(ctx, tag)
	if err != nil {
		return "", err
	}
	inst, err := oneInstance("bastion", tag, instances)
	if err != nil {
		return "", err
	}
	clog.FromContext(ctx).Debug("resolved bastion", "tag", tag, "instance", aws.ToString(inst.InstanceId))
	return publicAddress(inst)
}

// HostAddress returns the private address of the single running instance
// whose Name tag equals alias.
func (e *EC2) HostAddress(ctx context.Context, alias string) (string, error) {
	instances, err := e.runningByName(ctx, alias)
	if err != nil {
		return "", err
	}
	inst, err := oneInstance("host", alias, instances)
	if err != nil {
		return "", err
	}
	clog.FromContext(ctx).Debug("resolved host", "alias", alias, "instance", aws.ToString(inst.InstanceId))
	return privateAddress(inst)
}

var ErrDescribeInstances = fmt.Errorf("failed to describe EC2 instances")

func (e *EC2) runningByName(ctx context.Context, name string) ([]types.Instance, error) {
	return e.describe(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("instance-state-name"), Values: []string{string(types.InstanceStateNameRunning)}},
		},
	})
}

func (e *EC2) byID(ctx context.Context, instanceID string) (types.Instance, error) {
	instances, err := e.describe(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return types.Instance{}, err
	}
	if len(instances) == 0 {
		return types.Instance{}, &MatchError{Stage: "instance", Query: instanceID, kind: ErrNoMatch}
	}
	return instances[0], nil
}

// describe rolls all paginated reservation results up into a flat instance
// list.
func (e *EC2) describe(ctx context.Context, input *ec2.DescribeInstancesInput) ([]types.Instance, error) {
	var instances []types.Instance
	for {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		result, err := e.client.DescribeInstances(callCtx, input)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDescribeInstances, err)
		}
		for _, reservation := range result.Reservations {
			instances = append(instances, reservation.Instances...)
		}
		if result.NextToken == nil {
			break
		}
		input.NextToken = result.NextToken
	}
	return instances, nil
}

func oneInstance(stage, query string, instances []types.Instance) (types.Instance, error) {
	ids := make([]string, len(instances))
	for i := range instances {
		ids[i] = aws.ToString(instances[i].InstanceId)
	}
	if _, err := exactlyOne(stage, query, ids); err != nil {
		return types.Instance{}, err
	}
	return instances[0], nil
}

var ErrNoAddress = fmt.Errorf("instance has no usable network address")

func privateAddress(inst types.Instance) (string, error) {
	if addr := aws.ToString(inst.PrivateDnsName); addr != "" {
		return addr, nil
	}
	if addr := aws.ToString(inst.PrivateIpAddress); addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAddress, aws.ToString(inst.InstanceId))
}

func publicAddress(inst types.Instance) (string, error) {
	if addr := aws.ToString(inst.PublicDnsName); addr != "" {
		return addr, nil
	}
	if addr := aws.ToString(inst.PublicIpAddress); addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAddress, aws.ToString(inst.InstanceId))
}
