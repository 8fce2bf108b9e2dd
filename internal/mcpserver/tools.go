package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
)

func (s *MCPServer) registerTools() {
	optionsTool := mcp.NewTool("get_product_options",
		mcp.WithDescription("Группы опций, доступные товару (с учётом тегов совместимости)"),
		mcp.WithString("productId",
			mcp.Required(),
			mcp.Description("ID товара"),
		),
	)
	s.mcpServer.AddTool(optionsTool, s.handleGetProductOptions)

	mapTool := mcp.NewTool("map_recognized_specs",
		mcp.WithDescription("Сопоставляет распознанные пары category/value с опциями товара и возвращает новую селекцию"),
		mcp.WithString("productId",
			mcp.Description("ID товара; пусто - весь каталог"),
		),
		mcp.WithString("specs",
			mcp.Required(),
			mcp.Description(`JSON: [{"category":"外框","value":"透明"}] или {"specs":[...]}`),
		),
		mcp.WithString("selection",
			mcp.Description("JSON объект текущей селекции"),
		),
	)
	s.mcpServer.AddTool(mapTool, s.handleMapRecognizedSpecs)

	toggleTool := mcp.NewTool("toggle_option_group",
		mcp.WithDescription("Отмечает или снимает группу в быстром выборе товара"),
		mcp.WithString("productId",
			mcp.Required(),
			mcp.Description("ID товара"),
		),
		mcp.WithString("groupId",
			mcp.Required(),
			mcp.Description("ID группы опций"),
		),
		mcp.WithBoolean("checked",
			mcp.Required(),
			mcp.Description("true - отметить, false - снять"),
		),
	)
	s.mcpServer.AddTool(toggleTool, s.handleToggleGroup)
}

func (s *MCPServer) handleGetProductOptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	productID := strings.TrimSpace(request.GetString("productId", ""))
	if productID == "" {
		return mcp.NewToolResultError("productId parameter required"), nil
	}

	snap, err := s.svc.ProductOptions(ctx, productID)
	if err != nil {
		return toolError("failed to load product options", err), nil
	}

	return mcp.NewToolResultText(formatGroups(snap)), nil
}

func (s *MCPServer) handleMapRecognizedSpecs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawSpecs := request.GetString("specs", "")
	if strings.TrimSpace(rawSpecs) == "" {
		return mcp.NewToolResultError("specs parameter required"), nil
	}

	vr, err := recognition.ParseVisionResponse(rawSpecs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid specs: %v", err)), nil
	}

	var prior recognition.SelectionState
	if raw := strings.TrimSpace(request.GetString("selection", "")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prior); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("selection must be a JSON object: %v", err)), nil
		}
	}

	productID := strings.TrimSpace(request.GetString("productId", ""))
	res, err := s.svc.MapSpecs(ctx, productID, vr.Specs, prior)
	if err != nil {
		return toolError("failed to map specs", err), nil
	}

	utils.Info("MCP specs mapped", "product", productID, "specs", len(vr.Specs), "fallback", len(res.TextFallback))

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *MCPServer) handleToggleGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	productID := strings.TrimSpace(request.GetString("productId", ""))
	groupID := strings.TrimSpace(request.GetString("groupId", ""))
	if productID == "" || groupID == "" {
		return mcp.NewToolResultError("productId and groupId parameters required"), nil
	}
	checked, err := request.RequireBool("checked")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	product, err := s.svc.ToggleGroup(ctx, productID, groupID, checked)
	if err != nil {
		return toolError("failed to toggle group", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Товар %s: теги [%s], отмеченные группы [%s]",
		product.ID,
		strings.Join(product.CompatibilityTags, ", "),
		strings.Join(product.LinkedGroupIDs, ", "))), nil
}

func toolError(msg string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: not found: %v", msg, err))
	}
	utils.Error("MCP tool failed", "message", msg, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", msg, err))
}
