package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/cenkalti/backoff"
	"github.com/chainguard-dev/clog"
)

// Location is where a service#cluster target ended up: the host to hop to
// and the token used to find the right container on it.
type Location struct {
	PrivateAddress string

	// ImageTag is the task-definition identifier's last path segment with ':'
	// replaced by '-'. It is substring-matched against live container names on
	// the host, so the derivation here and the filter in the composed session
	// command must agree.
	ImageTag string
}

// ECS walks the cluster -> service -> task -> container instance -> EC2
// instance chain. Each stage is a blocking round-trip whose filter input is
// the previous stage's output, so the chain is strictly sequential.
type ECS struct {
	client ECSAPI
	ec2    *EC2
}

func NewECS(client ECSAPI, ec2 *EC2) *ECS {
	return &ECS{client: client, ec2: ec2}
}

var (
	ErrListClusters   = fmt.Errorf("failed to list ECS clusters")
	ErrListServices   = fmt.Errorf("failed to list ECS services")
	ErrListTasks      = fmt.Errorf("failed to list ECS tasks")
	ErrNoRunningTasks = fmt.Errorf("service has no running tasks")
	ErrDescribeTask   = fmt.Errorf("failed to describe ECS task")
	ErrDescribeCI     = fmt.Errorf("failed to describe ECS container instance")
	ErrTaskIncomplete = fmt.Errorf("task description is missing required fields")
	ErrCINoInstance   = fmt.Errorf("container instance has no EC2 instance ID")
)

// Locate resolves (service, cluster) to a Location. Zero or multiple matches
// at the cluster or service stage abort before any further call is made.
func (r *ECS) Locate(ctx context.Context, service, cluster string) (Location, error) {
	log := clog.FromContext(ctx).With("service", service, "cluster", cluster)

	clusterARN, err := r.cluster(ctx, cluster)
	if err != nil {
		return Location{}, err
	}
	log.Debug("selected cluster", "arn", clusterARN)

	serviceARN, err := r.service(ctx, clusterARN, service)
	if err != nil {
		return Location{}, err
	}
	log.Debug("selected service", "arn", serviceARN)

	taskARN, err := r.task(ctx, clusterARN, serviceARN)
	if err != nil {
		return Location{}, err
	}
	log.Debug("selected task", "arn", taskARN)

	ciARN, definitionARN, err := r.describeTask(ctx, clusterARN, taskARN)
	if err != nil {
		return Location{}, err
	}

	instanceID, err := r.instanceID(ctx, clusterARN, ciARN)
	if err != nil {
		return Location{}, err
	}
	log.Debug("selected container instance", "arn", ciARN, "instance", instanceID)

	inst, err := r.ec2.byID(ctx, instanceID)
	if err != nil {
		return Location{}, err
	}
	addr, err := privateAddress(inst)
	if err != nil {
		return Location{}, err
	}

	return Location{PrivateAddress: addr, ImageTag: ImageTag(definitionARN)}, nil
}

// ImageTag derives the container-name match key from a task-definition
// identifier: the portion after the last '/' with ':' replaced by '-'.
// "arn:aws:ecs:...:task-definition/family:7" becomes "family-7".
func ImageTag(definitionARN string) string {
	tag := definitionARN
	if i := strings.LastIndex(tag, "/"); i >= 0 {
		tag = tag[i+1:]
	}
	return strings.ReplaceAll(tag, ":", "-")
}

func (r *ECS) cluster(ctx context.Context, query string) (string, error) {
	var arns []string
	input := &ecs.ListClustersInput{}
	for {
		callCtx, cancel := context.WithTimeout(ctx, r.ec2.timeout)
		result, err := r.client.ListClusters(callCtx, input)
		cancel()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrListClusters, err)
		}
		arns = append(arns, result.ClusterArns...)
		if result.NextToken == nil {
			break
		}
		input.NextToken = result.NextToken
	}
	return SelectOne("cluster", query, arns)
}

func (r *ECS) service(ctx context.Context, clusterARN, query string) (string, error) {
	var arns []string
	input := &ecs.ListServicesInput{Cluster: aws.String(clusterARN)}
	for {
		callCtx, cancel := context.WithTimeout(ctx, r.ec2.timeout)
		result, err := r.client.ListServices(callCtx, input)
		cancel()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrListServices, err)
		}
		arns = append(arns, result.ServiceArns...)
		if result.NextToken == nil {
			break
		}
		input.NextToken = result.NextToken
	}
	return SelectOne("service", query, arns)
}

// task picks the first running task. Multiple tasks are expected under
// scaled services, so this stage intentionally skips the cardinality check.
func (r *ECS) task(ctx context.Context, clusterARN, serviceARN string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.ec2.timeout)
	defer cancel()
	result, err := r.client.ListTasks(callCtx, &ecs.ListTasksInput{
		Cluster:     aws.String(clusterARN),
		ServiceName: aws.String(serviceARN),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrListTasks, err)
	}
	if len(result.TaskArns) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRunningTasks, serviceARN)
	}
	return result.TaskArns[0], nil
}

func (r *ECS) describeTask(ctx context.Context, clusterARN, taskARN string) (ciARN, definitionARN string, err error) {
	err = retryOnTimeout(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.ec2.timeout)
		defer cancel()
		result, err := r.client.DescribeTasks(callCtx, &ecs.DescribeTasksInput{
			Cluster: aws.String(clusterARN),
			Tasks:   []string{taskARN},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDescribeTask, err)
		}
		if len(result.Tasks) == 0 {
			return fmt.Errorf("%w: %s", ErrDescribeTask, taskARN)
		}
		task := result.Tasks[0]
		ciARN = aws.ToString(task.ContainerInstanceArn)
		definitionARN = aws.ToString(task.TaskDefinitionArn)
		if ciARN == "" || definitionARN == "" {
			return fmt.Errorf("%w: %s", ErrTaskIncomplete, taskARN)
		}
		return nil
	})
	return ciARN, definitionARN, err
}

func (r *ECS) instanceID(ctx context.Context, clusterARN, ciARN string) (instanceID string, err error) {
	err = retryOnTimeout(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.ec2.timeout)
		defer cancel()
		result, err := r.client.DescribeContainerInstances(callCtx, &ecs.DescribeContainerInstancesInput{
			Cluster:            aws.String(clusterARN),
			ContainerInstances: []string{ciARN},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDescribeCI, err)
		}
		if len(result.ContainerInstances) == 0 {
			return fmt.Errorf("%w: %s", ErrDescribeCI, ciARN)
		}
		instanceID = aws.ToString(result.ContainerInstances[0].Ec2InstanceId)
		if instanceID == "" {
			return fmt.Errorf("%w: %s", ErrCINoInstance, ciARN)
		}
		return nil
	})
	return instanceID, err
}

// retryOnTimeout runs fn, retrying once if the failure was a deadline
// expiry. Listing stages fail fast; only the single-object describe calls
// pass through here.
func retryOnTimeout(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1),
		ctx,
	)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
