// specmatch-cli - распознавание скриншота и проверка результата в терминале.
//
// Примеры:
//
//	specmatch-cli -import catalog.json
//	specmatch-cli -import catalog.json -specs specs.json -product p_15
//	specmatch-cli -image shot.png -product p_15 -tui
//	specmatch-cli -specs specs.json -product p_15 -selection sel.json -json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilkoid/specmatch/internal/app"
	"github.com/ilkoid/specmatch/internal/ui"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
)

var (
	configFlag    = flag.String("config", "", "Path to config.yaml (default: ./config.yaml or next to binary)")
	imageFlag     = flag.String("image", "", "Screenshot file path or http(s) URL")
	specsFlag     = flag.String("specs", "", "JSON file with recognized specs (skips the vision call)")
	productFlag   = flag.String("product", "", "Product id (empty: whole catalog)")
	selectionFlag = flag.String("selection", "", "JSON file with the current selection")
	importFlag    = flag.String("import", "", "Import catalog JSON into the store (exits unless -image or -specs is set)")
	tuiFlag       = flag.Bool("tui", false, "Interactive review screen")
	jsonFlag      = flag.Bool("json", false, "Print the result as JSON")
	themeFlag     = flag.String("theme", "default", "Color scheme: default, light, dracula")
	timeoutFlag   = flag.Duration("timeout", 2*time.Minute, "Timeout for recognition")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		utils.Error("specmatch-cli failed", "error", err)
		fmt.Fprintf(os.Stderr, "specmatch-cli: %v\n", err)
		utils.Close()
		os.Exit(1)
	}
}

func run() error {
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configFlag})
	if err != nil {
		return err
	}
	if err := utils.InitLogger(cfg.App.LogPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Logger init failed: %v\n", err)
	}

	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	utils.Info("specmatch-cli started", "config", cfgPath, "product", *productFlag)

	components, err := app.Initialize(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer components.Close()

	if *importFlag != "" {
		if err := importCatalog(ctx, components.Store, *importFlag); err != nil {
			return err
		}
		if *imageFlag == "" && *specsFlag == "" {
			return nil
		}
		components.Service.InvalidateCatalog()
	}

	report, err := buildReport(ctx, components.Service)
	if err != nil {
		return err
	}

	switch {
	case *tuiFlag:
		return ui.Run(ctx, report, ui.WithColorScheme(ui.GetColorScheme(*themeFlag)))
	case *jsonFlag:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(report)
	default:
		fmt.Print(ui.RenderReport(report, ui.GetColorScheme(*themeFlag), 0))
		return nil
	}
}

func importCatalog(ctx context.Context, st *store.SQLiteStore, path string) error {
	f, err := store.ReadCatalogFile(path)
	if err != nil {
		return err
	}
	stats, err := st.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d groups, %d items, %d products\n", stats.Groups, stats.Items, stats.Products)
	return nil
}

// buildReport распознаёт скриншот (или читает готовые specs) и сопоставляет с каталогом.
func buildReport(ctx context.Context, svc *app.Service) (ui.Report, error) {
	productID := strings.TrimSpace(*productFlag)
	report := ui.Report{ProductID: productID}

	selection, err := readSelection(*selectionFlag)
	if err != nil {
		return report, err
	}

	if productID != "" {
		snap, err := svc.ProductOptions(ctx, productID)
		if err != nil {
			return report, err
		}
		report.ProductName = snap.Product.Name
		report.Groups = snap.Groups
	}

	switch {
	case *specsFlag != "":
		raw, err := os.ReadFile(*specsFlag)
		if err != nil {
			return report, fmt.Errorf("read specs: %w", err)
		}
		vr, err := recognition.ParseVisionResponse(string(raw))
		if err != nil {
			return report, fmt.Errorf("parse specs: %w", err)
		}
		res, err := svc.MapSpecs(ctx, productID, vr.Specs, selection)
		if err != nil {
			return report, err
		}
		report.PhoneName, report.CaseName = vr.PhoneName, vr.CaseName
		report.Recognized = vr.Specs
		report.Selection, report.TextFallback = res.NextSelection, res.TextFallback

	case *imageFlag != "":
		req := app.RecognizeRequest{ProductID: productID, Selection: selection}
		if strings.HasPrefix(*imageFlag, "http://") || strings.HasPrefix(*imageFlag, "https://") {
			req.ImageURL = *imageFlag
		} else {
			data, err := os.ReadFile(*imageFlag)
			if err != nil {
				return report, fmt.Errorf("read image: %w", err)
			}
			req.Image = data
		}

		recCtx, cancel := context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()

		res, err := svc.Recognize(recCtx, req)
		if err != nil {
			return report, err
		}
		report.PhoneName, report.CaseName = res.PhoneName, res.CaseName
		report.ImageURL = res.URL
		report.Recognized = res.Recognized
		report.Selection, report.TextFallback = res.Selection, res.TextFallback

	default:
		return report, errors.New("either -image or -specs is required")
	}

	if productID == "" {
		report.Groups = svc.Catalog(ctx)
	}
	return report, nil
}

func readSelection(path string) (recognition.SelectionState, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	var sel recognition.SelectionState
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, fmt.Errorf("selection must be a JSON object: %w", err)
	}
	return sel, nil
}
