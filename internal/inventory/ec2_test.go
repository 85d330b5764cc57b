package inventory

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopcli/hop/internal/config"
)

type fakeEC2 struct {
	calls    int
	describe func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.calls++
	return f.describe(in)
}

func instance(id, name, env, private, public string) types.Instance {
	inst := types.Instance{InstanceId: aws.String(id)}
	if name != "" {
		inst.Tags = append(inst.Tags, types.Tag{Key: aws.String("Name"), Value: aws.String(name)})
	}
	if env != "" {
		inst.Tags = append(inst.Tags, types.Tag{Key: aws.String("Env"), Value: aws.String(env)})
	}
	if private != "" {
		inst.PrivateDnsName = aws.String(private)
	}
	if public != "" {
		inst.PublicDnsName = aws.String(public)
	}
	return inst
}

func reservations(instances ...types.Instance) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: instances}},
	}
}

func TestHostAddress(t *testing.T) {
	fake := &fakeEC2{describe: func(in *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		// The filter set must constrain both the name tag and running state.
		require.Len(t, in.Filters, 2)
		assert.Equal(t, "tag:Name", aws.ToString(in.Filters[0].Name))
		assert.Equal(t, []string{"web-1"}, in.Filters[0].Values)
		assert.Equal(t, "instance-state-name", aws.ToString(in.Filters[1].Name))
		return reservations(instance("i-aaa", "web-1", "prod", "ip-10-0-0-5.ec2.internal", "")), nil
	}}

	addr, err := NewEC2(fake, 0).HostAddress(t.Context(), "web-1")
	require.NoError(t, err)
	assert.Equal(t, "ip-10-0-0-5.ec2.internal", addr)
}

func TestHostAddressFallsBackToPrivateIP(t *testing.T) {
	inst := types.Instance{
		InstanceId:       aws.String("i-aaa"),
		PrivateIpAddress: aws.String("10.0.0.5"),
	}
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(inst), nil
	}}

	addr, err := NewEC2(fake, 0).HostAddress(t.Context(), "web-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr)
}

func TestHostAddressNoMatch(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(), nil
	}}

	_, err := NewEC2(fake, 0).HostAddress(t.Context(), "web-1")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestHostAddressAmbiguous(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(
			instance("i-aaa", "web-1", "", "a.internal", ""),
			instance("i-bbb", "web-1", "", "b.internal", ""),
		), nil
	}}

	_, err := NewEC2(fake, 0).HostAddress(t.Context(), "web-1")
	assert.ErrorIs(t, err, ErrAmbiguous)

	var match *MatchError
	require.ErrorAs(t, err, &match)
	assert.Equal(t, []string{"i-aaa", "i-bbb"}, match.Candidates)
}

func TestBastionAddressStaticSkipsLookup(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		t.Fatal("static bastion address must not trigger a lookup")
		return nil, nil
	}}

	addr, err := NewEC2(fake, 0).BastionAddress(t.Context(), "bastion.example.com", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "bastion.example.com", addr)
	assert.Zero(t, fake.calls)
}

func TestBastionAddressByTag(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(instance("i-aaa", "jump", "", "ip-10-0-0-1.ec2.internal", "ec2-54-0-0-1.compute.amazonaws.com")), nil
	}}

	addr, err := NewEC2(fake, 0).BastionAddress(t.Context(), "", "jump")
	require.NoError(t, err)
	// The bastion is reached from outside, so the public name wins.
	assert.Equal(t, "ec2-54-0-0-1.compute.amazonaws.com", addr)
}

func TestBastionAddressUnconfigured(t *testing.T) {
	_, err := NewEC2(&fakeEC2{}, 0).BastionAddress(t.Context(), "", "")
	assert.ErrorIs(t, err, config.ErrBastionNotConfigured)
}

func TestBastionAddressAmbiguousTag(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(
			instance("i-aaa", "jump", "", "", "a.example.com"),
			instance("i-bbb", "jump", "", "", "b.example.com"),
		), nil
	}}

	_, err := NewEC2(fake, 0).BastionAddress(t.Context(), "", "jump")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestDescribePaginates(t *testing.T) {
	fake := &fakeEC2{}
	fake.describe = func(in *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		if fake.calls == 1 {
			out := reservations(instance("i-aaa", "web-1", "", "a.internal", ""))
			out.NextToken = aws.String("page-2")
			return out, nil
		}
		assert.Equal(t, "page-2", aws.ToString(in.NextToken))
		return reservations(instance("i-bbb", "web-1", "", "b.internal", "")), nil
	}

	_, err := NewEC2(fake, 0).HostAddress(t.Context(), "web-1")
	// Both pages are seen, so the lookup is ambiguous.
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.Equal(t, 2, fake.calls)
}

func TestList(t *testing.T) {
	fake := &fakeEC2{describe: func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return reservations(
			instance("i-ccc", "web-2", "prod", "", ""),
			instance("i-aaa", "web-1", "dev", "", ""),
			instance("i-bbb", "web-1", "prod", "", ""),
			instance("i-ddd", "", "", "", ""), // untagged must not crash the listing
		), nil
	}}

	records, err := NewEC2(fake, 0).List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Env: "", InstanceID: "i-ddd", Name: ""},
		{Env: "dev", InstanceID: "i-aaa", Name: "web-1"},
		{Env: "prod", InstanceID: "i-bbb", Name: "web-1"},
		{Env: "prod", InstanceID: "i-ccc", Name: "web-2"},
	}, records)
}
