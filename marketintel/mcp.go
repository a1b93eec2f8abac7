package marketintel

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/marketintel/kit"
)

// RegisterMCP registers all marketintel tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerScrapeProduct(srv)
	svc.registerPriceTrend(srv)
	svc.registerSentiment(srv)
	svc.registerCompetitors(srv)
	svc.registerMarketOverview(srv)
	svc.registerGenerateReport(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// tool wraps endpoint with the call logger and registers it.
func (svc *Service) tool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	wrapped := kit.Chain(kit.Logging(svc.logger, tool.Name))(endpoint)
	kit.RegisterMCPTool(srv, tool, wrapped, decode)
}

type productReq struct {
	ProductID string `json:"product_id"`
	Days      int    `json:"days"`
}

func (svc *Service) registerScrapeProduct(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_scrape_product",
		Description: "Scrape a tracked product now and persist the resulting observations",
		InputSchema: inputSchema(map[string]any{
			"product_id": map[string]any{"type": "string", "description": "Product ID"},
			"async":      map[string]any{"type": "boolean", "description": "Queue the scrape instead of running it"},
		}, []string{"product_id"}),
	}
	type req struct {
		ProductID string `json:"product_id"`
		Async     bool   `json:"async"`
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if p.Async {
			id, err := svc.EnqueueScrape(ctx, p.ProductID)
			if err != nil {
				return nil, err
			}
			return map[string]string{"task_id": id, "status": "queued"}, nil
		}
		return svc.ScrapeProduct(ctx, p.ProductID)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[req]())
}

func (svc *Service) registerPriceTrend(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_price_trend",
		Description: "Price trend of a product over a window: current, average, min, max, change percent and direction",
		InputSchema: inputSchema(map[string]any{
			"product_id": map[string]any{"type": "string", "description": "Product ID"},
			"days":       map[string]any{"type": "integer", "description": "Window in days (default 30)"},
		}, []string{"product_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*productReq)
		return svc.PriceTrend(ctx, p.ProductID, p.Days)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[productReq]())
}

func (svc *Service) registerSentiment(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_sentiment",
		Description: "Sentiment of a product over a window: average, label, per-source breakdown and recent mentions",
		InputSchema: inputSchema(map[string]any{
			"product_id": map[string]any{"type": "string", "description": "Product ID"},
			"days":       map[string]any{"type": "integer", "description": "Window in days (default 7)"},
		}, []string{"product_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*productReq)
		return svc.Sentiment(ctx, p.ProductID, p.Days)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[productReq]())
}

func (svc *Service) registerCompetitors(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_competitors",
		Description: "Compare a company's registered competitors: average prices, market average and insights",
		InputSchema: inputSchema(map[string]any{
			"company_id": map[string]any{"type": "string", "description": "Company ID"},
		}, []string{"company_id"}),
	}
	type req struct {
		CompanyID string `json:"company_id"`
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return svc.Competitors(ctx, r.(*req).CompanyID)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[req]())
}

func (svc *Service) registerMarketOverview(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_market_overview",
		Description: "Market overview: active companies and products, observations in the last 24h, top sources",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	type req struct{}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return svc.MarketOverview(ctx)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[req]())
}

func (svc *Service) registerGenerateReport(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marketintel_generate_report",
		Description: "Generate a company report (daily, weekly, monthly, competitor or custom) and return it",
		InputSchema: inputSchema(map[string]any{
			"company_id":  map[string]any{"type": "string", "description": "Company ID"},
			"kind":        map[string]any{"type": "string", "description": "daily, weekly, monthly, competitor or custom"},
			"window_days": map[string]any{"type": "integer", "description": "Window of a custom report in days (default 7)"},
		}, []string{"company_id", "kind"}),
	}
	type req struct {
		CompanyID  string `json:"company_id"`
		Kind       string `json:"kind"`
		WindowDays int    `json:"window_days"`
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.GenerateReport(ctx, p.CompanyID, p.Kind, p.WindowDays)
	}

	svc.tool(srv, tool, endpoint, kit.DecodeJSON[req]())
}
