package tools

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const productSearchToolName = "search_products"

// Product is one marketplace catalog entry.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// ProductSearchTool searches a static in-process catalog. The catalog is
// loaded once at startup; the tool never mutates it.
type ProductSearchTool struct {
	catalog []Product
}

func NewProductSearchTool(catalog []Product) *ProductSearchTool {
	return &ProductSearchTool{catalog: catalog}
}

// DefaultCatalog is the built-in demo catalog used when no external catalog
// is configured.
func DefaultCatalog() []Product {
	return []Product{
		{ID: "prod_001", Name: "Trail Running Shoes", Category: "footwear", Price: 89.99},
		{ID: "prod_002", Name: "Waterproof Hiking Boots", Category: "footwear", Price: 139.50},
		{ID: "prod_003", Name: "Insulated Water Bottle", Category: "accessories", Price: 24.00},
		{ID: "prod_004", Name: "Ultralight Backpack 40L", Category: "packs", Price: 179.00},
		{ID: "prod_005", Name: "Merino Wool Base Layer", Category: "apparel", Price: 64.95},
		{ID: "prod_006", Name: "Two-Person Tent", Category: "shelter", Price: 249.00},
		{ID: "prod_007", Name: "Headlamp 400lm", Category: "accessories", Price: 34.99},
		{ID: "prod_008", Name: "Down Sleeping Bag", Category: "shelter", Price: 199.00},
	}
}

func (t *ProductSearchTool) Name() string {
	return productSearchToolName
}

func (t *ProductSearchTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        productSearchToolName,
			Description: "Search the product catalog by name or category",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Free text matched against product name and category"},
					"limit": {"type": "integer", "description": "Maximum number of results, default 5"}
				},
				"required": ["query"]
			}`),
		},
	}
}

type productSearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *ProductSearchTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args productSearchArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid search_products arguments", err, "")
	}

	limit := args.Limit
	if limit <= 0 || limit > 25 {
		limit = 5
	}

	query := strings.ToLower(strings.TrimSpace(args.Query))
	var matches []Product
	for _, p := range t.catalog {
		if len(matches) == limit {
			break
		}
		if query == "" ||
			strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Category), query) {
			matches = append(matches, p)
		}
	}

	result, err := json.Marshal(map[string]any{
		"query":    args.Query,
		"products": matches,
	})
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to encode tool result")
	}
	return string(result), nil
}
