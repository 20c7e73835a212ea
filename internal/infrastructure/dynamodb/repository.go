package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"threatgate/internal/domain"
)

type Client struct {
	db        *awsv2dynamodb.Client
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName}, nil
}

func graphPK(graphID string) string { return "GRAPH#" + graphID }
func nodeSK(nodeID string) string   { return "NODE#" + nodeID }
func edgeSK(edgeID string) string   { return "EDGE#" + edgeID }

// GraphRepository persists threat-graph nodes and edges to a single
// DynamoDB table. Queries run against the in-memory graph; this repository
// only covers durability and startup hydration.
type GraphRepository struct {
	client  *Client
	graphID string
}

func NewGraphRepository(client *Client, graphID string) *GraphRepository {
	if graphID == "" {
		graphID = "default"
	}
	return &GraphRepository{client: client, graphID: graphID}
}

func (r *GraphRepository) SaveNode(ctx context.Context, node domain.ThreatNode) error {
	item := map[string]any{
		"PK":          graphPK(r.graphID),
		"SK":          nodeSK(node.ID),
		"EntityType":  "THREAT_NODE",
		"ID":          node.ID,
		"NodeType":    string(node.Type),
		"Name":        node.Name,
		"Description": node.Description,
		"Metadata":    node.Metadata,
		"UpdatedAt":   time.Now().UTC().Format(time.RFC3339),
	}
	if node.RiskScore != nil {
		item["RiskScore"] = *node.RiskScore
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.PutThreatNode", func(ctx context.Context) error {
		_, err = r.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName: aws.String(r.client.tableName),
			Item:      av,
		})
		return err
	})
}

func (r *GraphRepository) SaveEdge(ctx context.Context, edge domain.ThreatEdge) error {
	item := map[string]any{
		"PK":         graphPK(r.graphID),
		"SK":         edgeSK(edge.ID),
		"EntityType": "THREAT_EDGE",
		"ID":         edge.ID,
		"SourceID":   edge.SourceID,
		"TargetID":   edge.TargetID,
		"EdgeType":   string(edge.Type),
		"Weight":     edge.Weight,
		"Metadata":   edge.Metadata,
		"UpdatedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.PutThreatEdge", func(ctx context.Context) error {
		_, err = r.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName: aws.String(r.client.tableName),
			Item:      av,
		})
		return err
	})
}

func (r *GraphRepository) querySnapshot(ctx context.Context, segment, skPrefix string) ([]map[string]awsv2types.AttributeValue, error) {
	var items []map[string]awsv2types.AttributeValue
	var startKey map[string]awsv2types.AttributeValue
	for {
		var out *awsv2dynamodb.QueryOutput
		err := xray.Capture(ctx, segment, func(ctx context.Context) error {
			var e error
			out, e = r.client.db.Query(ctx, &awsv2dynamodb.QueryInput{
				TableName:              aws.String(r.client.tableName),
				KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
				ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
					":pk": &awsv2types.AttributeValueMemberS{Value: graphPK(r.graphID)},
					":sk": &awsv2types.AttributeValueMemberS{Value: skPrefix},
				},
				ExclusiveStartKey: startKey,
			})
			return e
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (r *GraphRepository) LoadNodes(ctx context.Context) ([]domain.ThreatNode, error) {
	items, err := r.querySnapshot(ctx, "DynamoDB.QueryThreatNodes", "NODE#")
	if err != nil {
		return nil, err
	}
	nodes := make([]domain.ThreatNode, 0, len(items))
	for _, item := range items {
		raw := struct {
			ID          string         `dynamodbav:"ID"`
			NodeType    string         `dynamodbav:"NodeType"`
			Name        string         `dynamodbav:"Name"`
			Description string         `dynamodbav:"Description"`
			Metadata    map[string]any `dynamodbav:"Metadata"`
			RiskScore   *float64       `dynamodbav:"RiskScore"`
		}{}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		nodes = append(nodes, domain.ThreatNode{
			ID:          raw.ID,
			Type:        domain.NodeType(raw.NodeType),
			Name:        raw.Name,
			Description: raw.Description,
			Metadata:    raw.Metadata,
			RiskScore:   raw.RiskScore,
		})
	}
	return nodes, nil
}

func (r *GraphRepository) LoadEdges(ctx context.Context) ([]domain.ThreatEdge, error) {
	items, err := r.querySnapshot(ctx, "DynamoDB.QueryThreatEdges", "EDGE#")
	if err != nil {
		return nil, err
	}
	edges := make([]domain.ThreatEdge, 0, len(items))
	for _, item := range items {
		raw := struct {
			ID       string         `dynamodbav:"ID"`
			SourceID string         `dynamodbav:"SourceID"`
			TargetID string         `dynamodbav:"TargetID"`
			EdgeType string         `dynamodbav:"EdgeType"`
			Weight   float64        `dynamodbav:"Weight"`
			Metadata map[string]any `dynamodbav:"Metadata"`
		}{}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		edges = append(edges, domain.ThreatEdge{
			ID:       raw.ID,
			SourceID: raw.SourceID,
			TargetID: raw.TargetID,
			Type:     domain.EdgeType(raw.EdgeType),
			Weight:   raw.Weight,
			Metadata: raw.Metadata,
		})
	}
	return edges, nil
}
