package spannerseed

import (
	"context"
	"fmt"

	database "cloud.google.com/go/spanner/admin/database/apiv1"
	"cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	instance "cloud.google.com/go/spanner/admin/instance/apiv1"
	"cloud.google.com/go/spanner/admin/instance/apiv1/instancepb"
	"google.golang.org/api/option"
)

type adminClients struct {
	instances *instance.InstanceAdminClient
	databases *database.DatabaseAdminClient
}

func newAdminClients(ctx context.Context, opts ...option.ClientOption) (*adminClients, error) {
	instances, err := instance.NewInstanceAdminClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance admin client: %w", err)
	}

	databases, err := database.NewDatabaseAdminClient(ctx, opts...)
	if err != nil {
		instances.Close()
		return nil, fmt.Errorf("failed to create database admin client: %w", err)
	}

	return &adminClients{instances: instances, databases: databases}, nil
}

// InstanceRequest builds the request for a single-node instance
func InstanceRequest(config Config) *instancepb.CreateInstanceRequest {
	return &instancepb.CreateInstanceRequest{
		Parent:     config.ProjectPath(),
		InstanceId: config.InstanceID,
		Instance: &instancepb.Instance{
			Config:      config.InstanceConfigPath(),
			DisplayName: config.InstanceID,
			NodeCount:   1,
		},
	}
}

// DatabaseRequest builds the request creating the database together with its tables
func DatabaseRequest(config Config, ddl []string) *databasepb.CreateDatabaseRequest {
	return &databasepb.CreateDatabaseRequest{
		Parent:          config.InstancePath(),
		CreateStatement: fmt.Sprintf("CREATE DATABASE `%s`", config.DatabaseID),
		ExtraStatements: ddl,
	}
}

func (a *adminClients) CreateInstance(ctx context.Context, config Config) error {
	op, err := a.instances.CreateInstance(ctx, InstanceRequest(config))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, config.OperationTimeout)
	defer cancel()

	if _, err := op.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for instance creation: %w", err)
	}
	return nil
}

func (a *adminClients) CreateDatabase(ctx context.Context, config Config, ddl []string) error {
	op, err := a.databases.CreateDatabase(ctx, DatabaseRequest(config, ddl))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, config.OperationTimeout)
	defer cancel()

	if _, err := op.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for database creation: %w", err)
	}
	return nil
}

func (a *adminClients) Close() error {
	ierr := a.instances.Close()
	derr := a.databases.Close()
	if ierr != nil {
		return ierr
	}
	return derr
}
