package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"shaderland/backend/shared"
)

const (
	defaultStackName = "shaderland"
	defaultRegion    = "us-east-1"
	tableOutputKey   = "ShadersTableName"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	ctx := context.Background()

	stackName := shared.GetEnv("STACK_NAME", defaultStackName)
	region := shared.GetEnv("AWS_REGION", defaultRegion)

	fmt.Println("Seeding the starter shader into DynamoDB...")

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %w", err)
	}

	tableName, err := getTableNameFromStack(ctx, cfg, stackName)
	if err != nil {
		return err
	}
	fmt.Printf("Using DynamoDB table: %s\n", tableName)

	store := shared.NewDynamoShaderStore(dynamodb.NewFromConfig(cfg), tableName, nil)

	existing, err := store.GetByID(ctx, shared.DefaultShaderID)
	switch {
	case err == nil:
		fmt.Printf("Starter shader '%s' already present (created %s), nothing to do\n",
			existing.ID, existing.CreatedAt.Format("2006-01-02"))
		return nil
	case !errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("failed to check for starter shader: %w", err)
	}

	shader := shared.DefaultShader()
	if err := store.Insert(ctx, &shader); err != nil {
		return fmt.Errorf("failed to insert starter shader: %w", err)
	}

	fmt.Printf("✓ Starter shader '%s' created successfully\n", shader.ID)
	return nil
}

// getTableNameFromStack retrieves the shaders table name from CloudFormation stack outputs
func getTableNameFromStack(ctx context.Context, cfg aws.Config, stackName string) (string, error) {
	cfClient := cloudformation.NewFromConfig(cfg)

	output, err := cfClient.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe stack: %w", err)
	}

	if len(output.Stacks) == 0 {
		return "", fmt.Errorf("stack '%s' not found", stackName)
	}

	for _, stackOutput := range output.Stacks[0].Outputs {
		if aws.ToString(stackOutput.OutputKey) == tableOutputKey && stackOutput.OutputValue != nil {
			return *stackOutput.OutputValue, nil
		}
	}

	return "", fmt.Errorf("could not find %s in CloudFormation outputs", tableOutputKey)
}
