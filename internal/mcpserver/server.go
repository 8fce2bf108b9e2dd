// Package mcpserver публикует операции сопоставления как MCP инструменты,
// чтобы агент мог сам распознать скриншот и передать пары category/value.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
)

const (
	serverName    = "specmatch"
	serverVersion = "1.0.0"
)

// Service - операции, доступные через MCP. Реализуется *app.Service.
type Service interface {
	ProductOptions(ctx context.Context, productID string) (store.Snapshot, error)
	MapSpecs(ctx context.Context, productID string, specs []recognition.RecognizedSpec, prior recognition.SelectionState) (recognition.Result, error)
	ToggleGroup(ctx context.Context, productID, groupID string, checked bool) (catalog.Product, error)
}

// MCPServer оборачивает server.MCPServer с зарегистрированными инструментами.
type MCPServer struct {
	svc       Service
	mcpServer *server.MCPServer
}

// New создаёт MCP сервер и регистрирует инструменты.
func New(svc Service) *MCPServer {
	s := &MCPServer{svc: svc}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// Server возвращает нижележащий MCP сервер.
func (s *MCPServer) Server() *server.MCPServer {
	return s.mcpServer
}

// HTTPHandler - streamable HTTP транспорт для монтирования под /mcp.
func (s *MCPServer) HTTPHandler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// formatGroups печатает группы товара в markdown.
func formatGroups(snap store.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", snap.Product.Name, snap.Product.ID)

	if len(snap.Product.CompatibilityTags) > 0 {
		fmt.Fprintf(&b, "Теги: %s\n", strings.Join(snap.Product.CompatibilityTags, ", "))
	}
	if len(snap.Groups) == 0 {
		b.WriteString("\nНет доступных групп опций.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Групп: %d\n", len(snap.Groups))

	for _, g := range snap.Groups {
		fmt.Fprintf(&b, "\n## %s [%s] step=%d\n", g.Name, g.Key(), g.UIConfig.Step)
		for _, sa := range g.SubAttributes {
			if sa.Type == catalog.AttributeText {
				fmt.Fprintf(&b, "- %s (%s): текст\n", sa.Name, sa.ID)
				continue
			}
			names := make([]string, 0, len(sa.Options))
			for _, o := range sa.Options {
				names = append(names, o.Name)
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", sa.Name, sa.ID, strings.Join(names, " / "))
		}
		for _, it := range g.Items {
			if it.Virtual {
				continue
			}
			fmt.Fprintf(&b, "- товар %s (%s) %+d\n", it.Name, it.ID, it.PriceModifier)
		}
	}
	return b.String()
}
