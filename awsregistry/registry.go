// Package awsregistry answers whether an AWS account identifier is known
// and active. The cloud account platform is an external collaborator; this
// package only defines its interface boundary and the AWS Organizations
// implementation of it.
package awsregistry

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/pkg/errors"
)

// Registry looks up the status of an account in the organization.
type Registry interface {
	// AccountStatus returns the account's status, e.g. "ACTIVE" or
	// "SUSPENDED".
	AccountStatus(ctx context.Context, accountID string) (string, error)
}

// Organizations implements Registry on the AWS Organizations API.
type Organizations struct {
	client *organizations.Client
}

var _ Registry = &Organizations{}

// NewOrganizations builds a Registry from the default AWS credential chain.
func NewOrganizations(ctx context.Context) (*Organizations, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load AWS configuration")
	}

	return &Organizations{client: organizations.NewFromConfig(cfg)}, nil
}

func (o *Organizations) AccountStatus(ctx context.Context, accountID string) (string, error) {
	out, err := o.client.DescribeAccount(ctx, &organizations.DescribeAccountInput{
		AccountId: aws.String(accountID),
	})
	if err != nil {
		return "", errors.Wrapf(err, "unable to describe account %s", accountID)
	}

	return string(out.Account.Status), nil
}

// Static is a Registry backed by a fixed map, for tests.
type Static map[string]string

func (s Static) AccountStatus(ctx context.Context, accountID string) (string, error) {
	status, ok := s[accountID]
	if !ok {
		return "", errors.Errorf("account %s is not in the organization", accountID)
	}
	return status, nil
}
