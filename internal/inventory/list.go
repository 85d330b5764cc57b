package inventory

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Record is one line of `hop list` output. Instances missing an Env or Name
// tag keep an empty field rather than being dropped.
type Record struct {
	Env        string
	InstanceID string
	Name       string
}

// List returns every running instance, sorted ascending by (Env, Name).
func (e *EC2) List(ctx context.Context) ([]Record, error) {
	instances, err := e.describe(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{string(types.InstanceStateNameRunning)}},
		},
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(instances))
	for _, inst := range instances {
		records = append(records, Record{
			Env:        tagValue(inst.Tags, "Env"),
			InstanceID: aws.ToString(inst.InstanceId),
			Name:       tagValue(inst.Tags, "Name"),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Env != records[j].Env {
			return records[i].Env < records[j].Env
		}
		return records[i].Name < records[j].Name
	})
	return records, nil
}

func tagValue(tags []types.Tag, key string) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
