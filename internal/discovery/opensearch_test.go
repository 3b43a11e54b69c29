package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/opensearch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedcat/internal/domain"
)

type mockAPI struct {
	names      []string
	statuses   map[string]types.DomainStatus
	describeFn func(names []string) error
	batches    [][]string
}

func (m *mockAPI) ListDomainNames(_ context.Context, _ *opensearch.ListDomainNamesInput, _ ...func(*opensearch.Options)) (*opensearch.ListDomainNamesOutput, error) {
	out := &opensearch.ListDomainNamesOutput{}
	for _, n := range m.names {
		out.DomainNames = append(out.DomainNames, types.DomainInfo{DomainName: aws.String(n)})
	}
	return out, nil
}

func (m *mockAPI) DescribeDomains(_ context.Context, in *opensearch.DescribeDomainsInput, _ ...func(*opensearch.Options)) (*opensearch.DescribeDomainsOutput, error) {
	m.batches = append(m.batches, in.DomainNames)
	if m.describeFn != nil {
		if err := m.describeFn(in.DomainNames); err != nil {
			return nil, err
		}
	}
	out := &opensearch.DescribeDomainsOutput{}
	for _, n := range in.DomainNames {
		if st, ok := m.statuses[n]; ok {
			out.DomainStatusList = append(out.DomainStatusList, st)
		}
	}
	return out, nil
}

func TestListDomainBindings(t *testing.T) {
	api := &mockAPI{
		names: []string{"logs", "vpc-only", "provisioning"},
		statuses: map[string]types.DomainStatus{
			"logs":         {DomainName: aws.String("logs"), Endpoint: aws.String("search-logs.us-east-1.es.amazonaws.com")},
			"vpc-only":     {DomainName: aws.String("vpc-only"), Endpoints: map[string]string{"vpc": "vpc-only.us-east-1.es.amazonaws.com"}},
			"provisioning": {DomainName: aws.String("provisioning")},
		},
	}

	bindings, err := NewWithAPI(api, nil).ListDomainBindings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Endpoint{
		"logs":     {URL: "https://search-logs.us-east-1.es.amazonaws.com"},
		"vpc-only": {URL: "https://vpc-only.us-east-1.es.amazonaws.com"},
	}, bindings)
}

func TestListDomainBindings_Batches(t *testing.T) {
	api := &mockAPI{statuses: map[string]types.DomainStatus{}}
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("d%02d", i)
		api.names = append(api.names, name)
		api.statuses[name] = types.DomainStatus{DomainName: aws.String(name), Endpoint: aws.String(name + ".example.com")}
	}

	bindings, err := NewWithAPI(api, nil).ListDomainBindings(context.Background())
	require.NoError(t, err)
	assert.Len(t, bindings, 12)
	require.Len(t, api.batches, 3)
	assert.Len(t, api.batches[0], 5)
	assert.Len(t, api.batches[1], 5)
	assert.Len(t, api.batches[2], 2)
}

func TestListDomainBindings_DescribeError(t *testing.T) {
	api := &mockAPI{
		names:      []string{"logs"},
		describeFn: func([]string) error { return errors.New("access denied") },
	}
	_, err := NewWithAPI(api, nil).ListDomainBindings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
