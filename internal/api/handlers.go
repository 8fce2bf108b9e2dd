package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ilkoid/specmatch/internal/app"
	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/ilkoid/specmatch/pkg/recognition"
	"github.com/ilkoid/specmatch/pkg/store"
	"github.com/ilkoid/specmatch/pkg/utils"
	"github.com/ilkoid/specmatch/pkg/vision"
)

const formOverhead = 1 << 20

type rootResponse struct {
	Message string `json:"message"`
	BuildID string `json:"buildId"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

type healthResponse struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type recognizeBody struct {
	ImageURL  string                     `json:"imageUrl"`
	ProductID string                     `json:"productId"`
	Selection recognition.SelectionState `json:"selection"`
}

type recognizeResponse struct {
	Envelope
	*app.RecognizeResult
}

type optionsResponse struct {
	Envelope
	Product catalog.Product       `json:"product"`
	Groups  []catalog.OptionGroup `json:"groups"`
}

type mapBody struct {
	Specs     []recognition.RecognizedSpec `json:"specs"`
	Selection recognition.SelectionState   `json:"selection"`
}

type mapResponse struct {
	Envelope
	recognition.Result
}

type toggleBody struct {
	Checked *bool `json:"checked"`
}

type toggleResponse struct {
	Envelope
	Product catalog.Product `json:"product"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message: "specmatch backend is running",
		BuildID: s.buildID,
		Version: Version,
		Docs:    "/api/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Time: s.now().UTC().Format("2006-01-02T15:04:05Z07:00")})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, http.StatusNotFound, CodeNotFound, "API Route not found: "+r.URL.Path, nil)
}

// handleRecognize принимает multipart (image | imageUrl, productId, selection)
// или JSON {imageUrl, productId, selection}.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)

	req, err := s.parseRecognize(r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.fail(w, http.StatusRequestEntityTooLarge, CodeUploadFailed, "image exceeds upload limit", err)
			return
		}
		s.fail(w, http.StatusBadRequest, CodeBadRequest, "invalid recognize request", err)
		return
	}

	res, err := s.svc.Recognize(r.Context(), req)
	if err != nil {
		status, code, msg := classifyRecognizeError(err)
		if status >= http.StatusInternalServerError {
			utils.Error("Recognize failed", "product", req.ProductID, "error", err)
		}
		s.fail(w, status, code, msg, err)
		return
	}

	writeJSON(w, http.StatusOK, recognizeResponse{Envelope: s.ok(), RecognizeResult: res})
}

func (s *Server) parseRecognize(r *http.Request) (app.RecognizeRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var body recognizeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return app.RecognizeRequest{}, fmt.Errorf("decode body: %w", err)
		}
		return app.RecognizeRequest{
			ProductID: strings.TrimSpace(body.ProductID),
			ImageURL:  body.ImageURL,
			Selection: body.Selection,
		}, nil
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return app.RecognizeRequest{}, fmt.Errorf("parse form: %w", err)
	}

	req := app.RecognizeRequest{
		ProductID: strings.TrimSpace(r.FormValue("productId")),
		ImageURL:  r.FormValue("imageUrl"),
	}

	if raw := strings.TrimSpace(r.FormValue("selection")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Selection); err != nil {
			return app.RecognizeRequest{}, fmt.Errorf("selection must be a JSON object: %w", err)
		}
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return app.RecognizeRequest{}, fmt.Errorf("read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return app.RecognizeRequest{}, fmt.Errorf("read image: %w", err)
	}
	req.Image = data
	return req, nil
}

// classifyRecognizeError отображает ошибку распознавания в HTTP статус и код.
func classifyRecognizeError(err error) (int, string, string) {
	var verr *vision.Error
	switch {
	case errors.Is(err, app.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, CodeUploadFailed, "image exceeds upload limit"
	case errors.Is(err, app.ErrNoImage),
		errors.Is(err, app.ErrBadImageURL),
		errors.Is(err, app.ErrBadImage),
		errors.Is(err, app.ErrImageFetch):
		return http.StatusBadRequest, CodeUploadFailed, "image upload failed"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "product not found"
	case errors.As(err, &verr):
		if verr.Type == vision.ErrRateLimit {
			return http.StatusTooManyRequests, CodeAIError, verr.Type.HumanMessage()
		}
		return http.StatusBadGateway, CodeAIError, verr.Type.HumanMessage()
	default:
		return http.StatusInternalServerError, CodeAIError, "AI recognition failed"
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.ProductOptions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failStore(w, err)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{Envelope: s.ok(), Product: snap.Product, Groups: snap.Groups})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var body mapBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, formOverhead)).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, CodeBadRequest, "invalid map request", err)
		return
	}

	res, err := s.svc.MapSpecs(r.Context(), r.PathValue("id"), body.Specs, body.Selection)
	if err != nil {
		s.failStore(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{Envelope: s.ok(), Result: res})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, formOverhead)).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, CodeBadRequest, "invalid toggle request", err)
		return
	}
	if body.Checked == nil {
		s.fail(w, http.StatusBadRequest, CodeBadRequest, "checked is required", nil)
		return
	}

	product, err := s.svc.ToggleGroup(r.Context(), r.PathValue("id"), r.PathValue("groupId"), *body.Checked)
	if err != nil {
		s.failStore(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Envelope: s.ok(), Product: product})
}

// failStore: NotFound -> 404, остальное -> 500.
func (s *Server) failStore(w http.ResponseWriter, err error) {
	var nf *store.NotFoundError
	switch {
	case errors.As(err, &nf):
		s.fail(w, http.StatusNotFound, CodeNotFound, nf.Entity+" not found", err)
	case errors.Is(err, store.ErrNotFound):
		s.fail(w, http.StatusNotFound, CodeNotFound, "not found", err)
	default:
		utils.Error("Store operation failed", "error", err)
		s.fail(w, http.StatusInternalServerError, CodeInternal, "internal server error", err)
	}
}
